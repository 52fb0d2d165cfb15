// Package debugger implements a read-only JDWP-lite agent: enough of the
// Java Debug Wire Protocol handshake and command framing for a debugger
// client to attach, enumerate loaded classes, and register (but never
// actually fire) event requests. It runs on its own goroutine, reads
// method area state through a mutex, and never mutates interpreter state
// — there is no suspend/resume, no breakpoint firing, no stepping.
package debugger

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"github.com/classvm/classvm/internal/methodarea"
)

var handshake = []byte("JDWP-Handshake")

const (
	csVirtualMachine = 1
	csEventRequest   = 15

	cmdVmVersion         = 1
	cmdVmAllClasses      = 3
	cmdVmIDSizes         = 7
	cmdVmCapabilities    = 12
	cmdVmCapabilitiesNew = 17

	cmdEventRequestSet = 1
)

// Agent serves JDWP-lite connections against one method area. Area access
// is guarded by mu since the interpreter goroutine may be linking new
// classes concurrently with a debugger enumerating them.
type Agent struct {
	mu   sync.Mutex
	area *methodarea.MethodArea

	nextEventID int32

	listener net.Listener
}

// New creates an Agent bound to area. The interpreter must not be started
// until area has been constructed; the Agent only reads it afterward.
func New(area *methodarea.MethodArea) *Agent {
	return &Agent{area: area}
}

// ListenAndServe binds port and accepts JDWP-lite connections until the
// listener is closed. It blocks; callers run it on its own goroutine, per
// the engine's "debugger suspension points: none" contract.
func (a *Agent) ListenAndServe(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("debugger: binding port %d: %w", port, err)
	}
	a.listener = ln
	log.Printf("JDWP agent listening on port %d", port)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go a.handleConn(conn)
	}
}

// Close stops accepting new connections. In-flight ones run to completion.
func (a *Agent) Close() error {
	if a.listener == nil {
		return nil
	}
	return a.listener.Close()
}

func (a *Agent) handleConn(conn net.Conn) {
	defer conn.Close()
	if err := performHandshake(conn); err != nil {
		log.Printf("debugger: handshake failed: %v", err)
		return
	}
	for {
		pkt, err := readCommandPacket(conn)
		if err == io.EOF {
			return
		}
		if err != nil {
			log.Printf("debugger: reading packet: %v", err)
			return
		}
		reply, err := a.handleCommand(pkt)
		if err != nil {
			log.Printf("debugger: handling command %d/%d: %v", pkt.commandSet, pkt.command, err)
			return
		}
		if err := writeReply(conn, pkt.id, reply); err != nil {
			log.Printf("debugger: writing reply: %v", err)
			return
		}
	}
}

func performHandshake(conn net.Conn) error {
	buf := make([]byte, len(handshake))
	if _, err := io.ReadFull(conn, buf); err != nil {
		return err
	}
	for i := range buf {
		if buf[i] != handshake[i] {
			return fmt.Errorf("invalid handshake")
		}
	}
	_, err := conn.Write(handshake)
	return err
}

// commandPacket is a JDWP command packet (JDWP spec §Packets): a 4-byte
// length-prefixed frame (length includes the 11-byte header) carrying a
// request id, a zero flags byte, a command-set/command pair, and a data
// payload.
type commandPacket struct {
	id         uint32
	commandSet uint8
	command    uint8
	data       []byte
}

func readCommandPacket(r io.Reader) (commandPacket, error) {
	var header [11]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return commandPacket{}, err
	}
	length := binary.BigEndian.Uint32(header[0:4])
	if length < 11 {
		return commandPacket{}, fmt.Errorf("packet length %d shorter than header", length)
	}
	data := make([]byte, length-11)
	if len(data) > 0 {
		if _, err := io.ReadFull(r, data); err != nil {
			return commandPacket{}, err
		}
	}
	return commandPacket{
		id:         binary.BigEndian.Uint32(header[4:8]),
		commandSet: header[9],
		command:    header[10],
		data:       data,
	}, nil
}

// writeReply frames data as a JDWP reply packet with a zero error code.
// Every command this agent implements succeeds or the connection is
// dropped, so there is no error-reply path to support.
func writeReply(w io.Writer, id uint32, data []byte) error {
	buf := make([]byte, 0, 11+len(data))
	buf = binary.BigEndian.AppendUint32(buf, uint32(11+len(data)))
	buf = binary.BigEndian.AppendUint32(buf, id)
	buf = append(buf, 0x80) // reply flag
	buf = binary.BigEndian.AppendUint16(buf, 0)
	buf = append(buf, data...)
	_, err := w.Write(buf)
	return err
}

func (a *Agent) handleCommand(pkt commandPacket) ([]byte, error) {
	switch pkt.commandSet {
	case csVirtualMachine:
		switch pkt.command {
		case cmdVmVersion:
			return encodeVersion(), nil
		case cmdVmIDSizes:
			return encodeIDSizes(), nil
		case cmdVmCapabilities:
			return encodeCapabilities(false), nil
		case cmdVmCapabilitiesNew:
			return encodeCapabilities(true), nil
		case cmdVmAllClasses:
			return a.encodeAllClasses(), nil
		}
	case csEventRequest:
		if pkt.command == cmdEventRequestSet {
			return a.registerEventRequest(), nil
		}
	}
	return nil, fmt.Errorf("unhandled command set %d command %d", pkt.commandSet, pkt.command)
}

func appendUTF(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func encodeVersion() []byte {
	var buf []byte
	buf = appendUTF(buf, "classvm JDWP-lite agent")
	buf = binary.BigEndian.AppendUint32(buf, 25) // jdwpMajor
	buf = binary.BigEndian.AppendUint32(buf, 0)  // jdwpMinor
	buf = appendUTF(buf, "24.0.2")
	buf = appendUTF(buf, "classvm")
	return buf
}

// encodeIDSizes reports every JDWP ID as 4 bytes, matching the engine's
// 32-bit ClassId/MethodId/HeapRef handles.
func encodeIDSizes() []byte {
	var buf []byte
	for i := 0; i < 5; i++ {
		buf = binary.BigEndian.AppendUint32(buf, 4)
	}
	return buf
}

// encodeCapabilities reports every optional capability as unsupported:
// this agent is read-only introspection, not a real debugger backend.
func encodeCapabilities(new bool) []byte {
	n := 7
	if new {
		n = 32
	}
	return make([]byte, n)
}

func (a *Agent) encodeAllClasses() []byte {
	a.mu.Lock()
	classes := a.area.LoadedClasses()
	a.mu.Unlock()

	var buf []byte
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(classes)))
	for _, c := range classes {
		buf = append(buf, classTypeTag(c))
		buf = binary.BigEndian.AppendUint32(buf, uint32(c.ID))
		buf = appendUTF(buf, "L"+a.area.Interner.Resolve(c.NameSym)+";")
		buf = binary.BigEndian.AppendUint32(buf, uint32(c.InitState))
	}
	return buf
}

func classTypeTag(c *methodarea.Class) byte {
	if c.IsInterface {
		return 2 // TAG_INTERFACE
	}
	return 1 // TAG_CLASS
}

// registerEventRequest assigns and returns a new event request id without
// actually arming anything: there is no suspend/resume machinery for an
// event to interrupt, matching the "suspension points: none" contract. A
// real debugger asking to set a breakpoint gets an id back and nothing
// ever fires on it.
func (a *Agent) registerEventRequest() []byte {
	id := atomic.AddInt32(&a.nextEventID, 1)
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(id))
	return buf
}
