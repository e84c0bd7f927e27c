// Package manager implements the tube manager: the dual-stack UDP socket
// pair, the tube table, the six-event dispatcher, the self-pipe interrupt
// channel, signal routing, and the main select()-based loop.
package manager

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/go-spud/spud-go/internal/constants"
	"github.com/go-spud/spud-go/internal/interfaces"
	"github.com/go-spud/spud-go/internal/timerqueue"
	"github.com/go-spud/spud-go/internal/tube"
	"github.com/go-spud/spud-go/internal/wire"
)

// Policy is a bitset of manager behaviors; only PolicyWillRespond is
// currently consumed.
type Policy uint32

const (
	PolicyWillRespond Policy = 1 << iota
)

// EventName identifies one of the manager's six well-known events.
type EventName string

const (
	EventLoopStart EventName = "loopstart"
	EventRunning   EventName = "running"
	EventData      EventName = "data"
	EventClose     EventName = "close"
	EventAdd       EventName = "add"
	EventRemove    EventName = "remove"
)

var knownEvents = map[EventName]bool{
	EventLoopStart: true,
	EventRunning:   true,
	EventData:      true,
	EventClose:     true,
	EventAdd:       true,
	EventRemove:    true,
}

// Event carries whatever context a callback needs for the event it was
// registered against; fields not relevant to a given event are zero.
type Event struct {
	Name   EventName
	Tube   *tube.Tube
	Header *wire.Header
	Item   *wire.Item
}

// EventCallback handles one fired Event.
type EventCallback func(Event)

// SignalCallback handles a routed OS signal from the loop thread.
type SignalCallback func(sig syscall.Signal)

var (
	ErrInvalidArg    = errors.New("manager: invalid argument")
	ErrInvalidState  = errors.New("manager: invalid state")
	ErrNotFound      = errors.New("manager: not found")
	ErrDuplicateTube = errors.New("manager: tube already registered")
	ErrUnknownEvent  = errors.New("manager: unknown event name")
)

// Config carries a manager's construction-time dependencies, following the
// teacher's Options/DeviceParams pattern.
type Config struct {
	// Port is the local UDP port to bind both sockets to; 0 requests an
	// ephemeral port from the kernel. A non-zero port implicitly enables
	// PolicyWillRespond.
	Port int
	// Policy is OR'd with the port-derived responder bit.
	Policy   Policy
	Logger   interfaces.Logger
	Observer interfaces.Observer
	// Clock overrides the wall clock the loop uses to seed and refresh
	// last-observed time; nil defaults to time.Now. Tests substitute a fake
	// clock here to drive timer ordering deterministically.
	Clock func() time.Time
}

// DefaultConfig returns a Config for an ephemeral-port, non-responder,
// unlogged, unobserved manager.
func DefaultConfig() Config {
	return Config{Port: constants.DefaultResponderPort}
}

// Manager owns the v4/v6 socket pair, the tube table, the event dispatcher,
// the timer queue, and the self-pipe. Only the timer queue and the self-pipe
// write end are safe to touch off the loop thread; everything else is
// loop-thread-private by contract (§5).
type Manager struct {
	sockV4 int
	sockV6 int
	pipeR  int
	pipeW  int

	tubes    map[wire.ID]*tube.Tube
	timers   *timerqueue.Queue
	handlers map[EventName][]EventCallback

	lastObserved time.Time
	policy       Policy
	keepGoing    atomic.Bool

	logger   interfaces.Logger
	observer interfaces.Observer

	sigCallbacks map[byte]SignalCallback
	clock        func() time.Time
}

// New constructs a manager, opening its dual-stack sockets and self-pipe.
// All setup errors are returned to the caller and abort construction, per
// spec: no resources leak on a failed New.
func New(cfg Config) (*Manager, error) {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	m := &Manager{
		sockV4:       -1,
		sockV6:       -1,
		pipeR:        -1,
		pipeW:        -1,
		tubes:        make(map[wire.ID]*tube.Tube),
		timers:       timerqueue.New(),
		handlers:     make(map[EventName][]EventCallback),
		sigCallbacks: make(map[byte]SignalCallback),
		policy:       cfg.Policy,
		logger:       cfg.Logger,
		observer:     cfg.Observer,
		clock:        clock,
		lastObserved: clock(),
	}
	if cfg.Port != 0 {
		m.policy |= PolicyWillRespond
	}

	if err := m.openSockets(cfg.Port); err != nil {
		return nil, fmt.Errorf("manager: new: %w", err)
	}

	pipeFds := make([]int, 2)
	if err := unix.Pipe2(pipeFds, unix.O_NONBLOCK); err != nil {
		m.closeSockets()
		return nil, fmt.Errorf("manager: new: pipe2: %w", err)
	}
	m.pipeR, m.pipeW = pipeFds[0], pipeFds[1]

	if m.logger != nil {
		m.logger.Debugf("manager: opened v4=%d v6=%d pipe=(%d,%d) responder=%v",
			m.sockV4, m.sockV6, m.pipeR, m.pipeW, m.policy&PolicyWillRespond != 0)
	}
	return m, nil
}

func (m *Manager) openSockets(port int) error {
	v6, err := openV6Socket(port)
	if err != nil {
		return fmt.Errorf("open v6 socket: %w", err)
	}
	m.sockV6 = v6

	v4, err := openV4Socket(port)
	if err != nil {
		unix.Close(m.sockV6)
		m.sockV6 = -1
		return fmt.Errorf("open v4 socket: %w", err)
	}
	m.sockV4 = v4
	return nil
}

func openV6Socket(port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_DGRAM, 0)
	if err != nil {
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_IPV6, unix.IPV6_V6ONLY, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Bind(fd, &unix.SockaddrInet6{Port: port}); err != nil {
		unix.Close(fd)
		return -1, err
	}
	// Best-effort: ancillary pktinfo and receive timestamps are used when
	// the kernel supports them, but their absence is not fatal.
	_ = unix.SetsockoptInt(fd, unix.SOL_IPV6, unix.IPV6_RECVPKTINFO, 1)
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TIMESTAMP, 1)
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func openV4Socket(port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return -1, err
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		unix.Close(fd)
		return -1, err
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_IP, unix.IP_PKTINFO, 1)
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TIMESTAMP, 1)
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func (m *Manager) closeSockets() {
	if m.sockV4 >= 0 {
		unix.Close(m.sockV4)
		m.sockV4 = -1
	}
	if m.sockV6 >= 0 {
		unix.Close(m.sockV6)
		m.sockV6 = -1
	}
}

// Close releases both sockets, both pipe ends, and destroys every tube still
// registered. Safe to call after a failed or successful Loop.
func (m *Manager) Close() {
	for _, t := range m.tubes {
		t.Destroy()
	}
	m.tubes = make(map[wire.ID]*tube.Tube)
	m.closeSockets()
	if m.pipeR >= 0 {
		unix.Close(m.pipeR)
		m.pipeR = -1
	}
	if m.pipeW >= 0 {
		unix.Close(m.pipeW)
		m.pipeW = -1
	}
}

// BindEvent wires cb to fire, in registration order alongside any
// previously-bound callbacks, whenever name fires.
func (m *Manager) BindEvent(name EventName, cb EventCallback) error {
	if !knownEvents[name] {
		return fmt.Errorf("manager: bind_event: %w: %q", ErrUnknownEvent, name)
	}
	m.handlers[name] = append(m.handlers[name], cb)
	return nil
}

func (m *Manager) fire(ev Event) {
	for _, cb := range m.handlers[ev.Name] {
		cb(ev)
	}
}

// Add inserts t into the tube table and fires "add". Double-insertion (a
// tube whose ID is already present) is caller error.
func (m *Manager) Add(t *tube.Tube) error {
	if _, exists := m.tubes[t.ID]; exists {
		return fmt.Errorf("manager: add: %w: %s", ErrDuplicateTube, wire.IDToHex(t.ID))
	}
	t.SetSender(m)
	m.tubes[t.ID] = t
	m.fire(Event{Name: EventAdd, Tube: t})
	if m.observer != nil {
		m.observer.ObserveTubeCount(uint32(len(m.tubes)))
	}
	return nil
}

// Remove fires "remove", deletes t from the table, then destroys it (a
// best-effort CLOSE is sent only if t was still RUNNING).
func (m *Manager) Remove(t *tube.Tube) error {
	if _, exists := m.tubes[t.ID]; !exists {
		return fmt.Errorf("manager: remove: %w: %s", ErrNotFound, wire.IDToHex(t.ID))
	}
	m.fire(Event{Name: EventRemove, Tube: t})
	delete(m.tubes, t.ID)
	t.Destroy()
	if m.observer != nil {
		m.observer.ObserveTubeCount(uint32(len(m.tubes)))
	}
	return nil
}

// OpenTube creates a fresh tube bound to dest's address family, transitions
// it to OPENING, adds it to the table, and sends OPEN. The tube is
// destroyed and not returned if any step fails.
func (m *Manager) OpenTube(dest net.Addr) (*tube.Tube, error) {
	sock, err := m.socketForAddr(dest)
	if err != nil {
		return nil, fmt.Errorf("manager: open_tube: %w", err)
	}

	t := tube.Create()
	t.SetInfo(sock, nil, nil)
	t.SetSender(m)

	if err := t.Open(dest); err != nil {
		t.Destroy()
		return nil, fmt.Errorf("manager: open_tube: %w", err)
	}
	if err := m.Add(t); err != nil {
		t.Destroy()
		return nil, fmt.Errorf("manager: open_tube: %w", err)
	}
	return t, nil
}

func (m *Manager) socketForAddr(addr net.Addr) (int, error) {
	udp, ok := addr.(*net.UDPAddr)
	if !ok || udp.IP == nil {
		return -1, fmt.Errorf("%w: destination is not a UDP address", ErrInvalidArg)
	}
	if ip4 := udp.IP.To4(); ip4 != nil {
		if m.sockV4 < 0 {
			return -1, fmt.Errorf("%w: no v4 socket open", ErrInvalidArg)
		}
		return m.sockV4, nil
	}
	if udp.IP.To16() != nil {
		if m.sockV6 < 0 {
			return -1, fmt.Errorf("%w: no v6 socket open", ErrInvalidArg)
		}
		return m.sockV6, nil
	}
	return -1, fmt.Errorf("%w: unrecognized address family", ErrInvalidArg)
}

// SendTo implements tube.Sender: it writes buffers as one scatter-gather
// datagram to peer via the socket matching peer's address family.
func (m *Manager) SendTo(peer net.Addr, oob []byte, buffers ...[]byte) error {
	sa, err := udpAddrToSockaddr(peer)
	if err != nil {
		return err
	}

	var fd int
	switch sa.(type) {
	case *unix.SockaddrInet4:
		fd = m.sockV4
	case *unix.SockaddrInet6:
		fd = m.sockV6
	}
	if fd < 0 {
		return fmt.Errorf("%w: no socket open for destination address family", ErrInvalidState)
	}

	if _, err := unix.SendmsgBuffers(fd, buffers, oob, sa, 0); err != nil {
		return fmt.Errorf("sendmsg: %w", err)
	}

	if m.observer != nil {
		var total uint64
		for _, b := range buffers {
			total += uint64(len(b))
		}
		var cmd byte
		if len(buffers) > 0 && len(buffers[0]) >= constants.HeaderSize {
			cmd = buffers[0][constants.HeaderSize-1] & 0xC0
		}
		m.observer.ObserveDatagramOut(total, cmd)
	}
	return nil
}

func udpAddrToSockaddr(addr net.Addr) (unix.Sockaddr, error) {
	udp, ok := addr.(*net.UDPAddr)
	if !ok || udp.IP == nil {
		return nil, fmt.Errorf("%w: not a UDP address", ErrInvalidArg)
	}
	if ip4 := udp.IP.To4(); ip4 != nil {
		var a [4]byte
		copy(a[:], ip4)
		return &unix.SockaddrInet4{Port: udp.Port, Addr: a}, nil
	}
	ip16 := udp.IP.To16()
	if ip16 == nil {
		return nil, fmt.Errorf("%w: invalid IP address", ErrInvalidArg)
	}
	var a [16]byte
	copy(a[:], ip16)
	return &unix.SockaddrInet6{Port: udp.Port, Addr: a}, nil
}

// LocalAddrV4 returns the bound address of the v4 socket, including the
// kernel-assigned ephemeral port when Config.Port was 0.
func (m *Manager) LocalAddrV4() (*net.UDPAddr, error) {
	return localAddr(m.sockV4)
}

// LocalAddrV6 returns the bound address of the v6 socket, including the
// kernel-assigned ephemeral port when Config.Port was 0.
func (m *Manager) LocalAddrV6() (*net.UDPAddr, error) {
	return localAddr(m.sockV6)
}

func localAddr(fd int) (*net.UDPAddr, error) {
	if fd < 0 {
		return nil, fmt.Errorf("%w: socket not open", ErrInvalidState)
	}
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil, fmt.Errorf("getsockname: %w", err)
	}
	udp, ok := sockaddrToUDPAddr(sa).(*net.UDPAddr)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected sockaddr type", ErrInvalidState)
	}
	return udp, nil
}

func sockaddrToUDPAddr(sa unix.Sockaddr) net.Addr {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.UDPAddr{IP: net.IPv4(s.Addr[0], s.Addr[1], s.Addr[2], s.Addr[3]), Port: s.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, s.Addr[:])
		return &net.UDPAddr{IP: ip, Port: s.Port}
	default:
		return nil
	}
}

// Interrupt writes a single byte to the self-pipe. It is safe to call from
// any thread, including an OS signal handler's trampoline goroutine.
// EAGAIN (pipe buffer full, meaning a wake is already pending) is retried;
// all other errors are surfaced.
func (m *Manager) Interrupt(b byte) error {
	buf := [1]byte{b}
	for {
		_, err := unix.Write(m.pipeW, buf[:])
		if err == nil {
			return nil
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			continue
		}
		return fmt.Errorf("manager: interrupt: %w", err)
	}
}

// ScheduleMs pushes a timer entry deadlined ms milliseconds after the
// manager's last-observed time, then pokes the self-pipe.
func (m *Manager) ScheduleMs(ms int64, cb timerqueue.Callback, ctx any) {
	deadline := m.lastObserved.Add(time.Duration(ms) * time.Millisecond)
	m.ScheduleAt(deadline, cb, ctx)
}

// ScheduleAt pushes a timer entry deadlined at t, then pokes the self-pipe.
func (m *Manager) ScheduleAt(t time.Time, cb timerqueue.Callback, ctx any) {
	m.timers.Push(timerqueue.Entry{Deadline: t, Callback: cb, Ctx: ctx})
	_ = m.Interrupt(constants.WakeByte)
}

// Now returns the manager's cached last-observed time, refreshed each loop
// iteration from a kernel receive timestamp or a select timeout.
func (m *Manager) Now() time.Time {
	return m.lastObserved
}

// Stop clears the loop's keep-going flag and wakes it so the change is
// observed at the next iteration.
func (m *Manager) Stop() {
	m.keepGoing.Store(false)
	_ = m.Interrupt(constants.WakeByte)
}

// Running reports whether the loop is (or would be) still iterating.
func (m *Manager) Running() bool {
	return m.keepGoing.Load()
}

// Signal registers cb to run on the loop thread (not the signal handler
// itself) whenever sig arrives, by routing it through this manager's
// self-pipe. The OS-level handler is shared process-wide per signal number;
// every manager that has registered for sig is interrupted when it fires,
// not just the most recent one.
func (m *Manager) Signal(sig syscall.Signal, cb SignalCallback) error {
	if sig <= 0 || int(sig) > 0xff {
		return fmt.Errorf("%w: signal number out of self-pipe range", ErrInvalidArg)
	}
	m.sigCallbacks[byte(sig)] = cb
	registerSignalRoute(sig, m)
	return nil
}

var (
	sigMu    sync.Mutex
	sigChans = make(map[syscall.Signal]chan os.Signal)
	sigTgts  = make(map[syscall.Signal][]*Manager)
)

// registerSignalRoute ensures exactly one OS-level handler is installed for
// sig, and adds mgr to the set of managers interrupted when it fires. The
// handler goroutine's only job is to call Interrupt(byte(sig)) on every
// manager routed to sig, so each one's callback runs on its own loop thread.
func registerSignalRoute(sig syscall.Signal, mgr *Manager) {
	sigMu.Lock()
	defer sigMu.Unlock()

	registered := false
	for _, existing := range sigTgts[sig] {
		if existing == mgr {
			registered = true
			break
		}
	}
	if !registered {
		sigTgts[sig] = append(sigTgts[sig], mgr)
	}

	if _, installed := sigChans[sig]; installed {
		return
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sig)
	sigChans[sig] = ch

	go func() {
		for range ch {
			sigMu.Lock()
			targets := append([]*Manager(nil), sigTgts[sig]...)
			sigMu.Unlock()
			for _, target := range targets {
				_ = target.Interrupt(byte(sig))
			}
		}
	}()
}
