package nameresolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/miekg/dns"
	"github.com/ruteri/vanity-name-registrar/interfaces"
)

// DefaultTTL is the TTL of answers, in seconds.
const DefaultTTL = 30

// Resolver returns the active lock for name.
type Resolver interface {
	Resolve(name string) (interfaces.NameLock, bool)
}

// Handler answers TXT queries for names under a zone.
type Handler struct {
	zone     string
	resolver Resolver
	ttl      uint32
	log      *slog.Logger
}

func NewHandler(zone string, resolver Resolver, log *slog.Logger) *Handler {
	return &Handler{
		zone:     dns.Fqdn(zone),
		resolver: resolver,
		ttl:      DefaultTTL,
		log:      log,
	}
}

// ServeDNS implements dns.Handler.
func (h *Handler) ServeDNS(w dns.ResponseWriter, req *dns.Msg) {
	resp := h.answer(req)
	if err := w.WriteMsg(resp); err != nil {
		h.log.Warn("could not write dns response", "err", err)
	}
}

func (h *Handler) answer(req *dns.Msg) *dns.Msg {
	resp := new(dns.Msg)
	resp.SetReply(req)
	resp.Authoritative = true

	if len(req.Question) != 1 {
		resp.Rcode = dns.RcodeFormatError
		return resp
	}
	q := req.Question[0]

	name, ok := h.nameFor(q.Name)
	if !ok {
		resp.Authoritative = false
		resp.Rcode = dns.RcodeRefused
		return resp
	}

	lock, ok := h.resolver.Resolve(name)
	if !ok {
		resp.Rcode = dns.RcodeNameError
		return resp
	}

	if q.Qtype != dns.TypeTXT && q.Qtype != dns.TypeANY {
		return resp
	}

	resp.Answer = append(resp.Answer, &dns.TXT{
		Hdr: dns.RR_Header{
			Name:   q.Name,
			Rrtype: dns.TypeTXT,
			Class:  dns.ClassINET,
			Ttl:    h.ttl,
		},
		Txt: []string{
			"owner=" + lock.Owner.Hex(),
			"expires=" + strconv.FormatInt(lock.EndDate.Unix(), 10),
		},
	})

	h.log.Debug("resolved name", "name", name, "owner", lock.Owner.Hex())
	return resp
}

// nameFor strips the zone from qname. The zone apex itself is not a name.
func (h *Handler) nameFor(qname string) (string, bool) {
	qname = dns.Fqdn(qname)
	if !dns.IsSubDomain(h.zone, qname) || len(qname) <= len(h.zone) {
		return "", false
	}
	return strings.TrimSuffix(qname[:len(qname)-len(h.zone)], "."), true
}

// Server serves a Handler over UDP.
type Server struct {
	srv *dns.Server
	log *slog.Logger
}

// NewServer creates a UDP DNS server for handler on addr.
func NewServer(addr string, handler *Handler, log *slog.Logger) *Server {
	return &Server{
		srv: &dns.Server{Addr: addr, Net: "udp", Handler: handler},
		log: log,
	}
}

// RunInBackground starts serving on pc, or on the configured address when pc
// is nil. It returns once the listener is up.
func (s *Server) RunInBackground(pc net.PacketConn) error {
	started := make(chan struct{})
	s.srv.NotifyStartedFunc = func() { close(started) }
	s.srv.PacketConn = pc

	errCh := make(chan error, 1)
	go func() {
		var err error
		if pc != nil {
			err = s.srv.ActivateAndServe()
		} else {
			err = s.srv.ListenAndServe()
		}
		if err != nil {
			s.log.Error("dns server failed", "err", err)
		}
		errCh <- err
	}()

	select {
	case <-started:
		s.log.Info("Starting DNS server", "addr", s.Addr())
		return nil
	case err := <-errCh:
		return fmt.Errorf("could not start dns server: %w", err)
	}
}

// Addr is the address the server is bound to.
func (s *Server) Addr() string {
	if s.srv.PacketConn != nil {
		return s.srv.PacketConn.LocalAddr().String()
	}
	return s.srv.Addr
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.ShutdownContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
