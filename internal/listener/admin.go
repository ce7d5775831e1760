package listener

import (
	"errors"
	"net"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/GiedriusS/statsd-server/internal/event"
)

// Admin accepts TCP connections for the admin channel (spec.md §4.6) and
// hands each one off as a TcpMessage; the dispatcher delegates the
// line-protocol handling itself to internal/admin.HandleConnection, keeping the
// accept loop here symmetric with UDP/ZMQ and the actual protocol
// isolated in its own package. Grounded on justeat-statsdaemon's
// adminListener (accept loop spawning per-connection handling).
type Admin struct {
	ln  net.Listener
	log *logrus.Entry
}

// ListenAdmin binds addr for the admin TCP channel.
func ListenAdmin(addr string, log *logrus.Entry) (*Admin, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	log.WithField("addr", ln.Addr().String()).Info("admin listener started")
	return &Admin{ln: ln, log: log.WithField("component", "listener.admin")}, nil
}

// Run accepts connections until the listener is closed, sending each as a
// TcpMessage event.
func (a *Admin) Run(ch chan<- event.Event) {
	for {
		conn, err := a.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "closed network") {
				return
			}
			a.log.WithError(err).Error("admin accept error")
			continue
		}
		ch <- event.TcpMessage{Conn: conn}
	}
}

// Close stops the listener.
func (a *Admin) Close() error {
	return a.ln.Close()
}
