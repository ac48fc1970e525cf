// Package usb serves the virtual bus over the USB/IP protocol. A Linux
// vhci-hcd client that imports the pad polls its interrupt IN endpoint at
// the descriptor's bInterval; that polling is the print sequencer's clock.
package usb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"inkpad/internal/log"
	"inkpad/usb"
	"inkpad/usbip"
	"inkpad/virtualbus"
)

// USB standard request codes and bmRequestType values handled on EP0.
const (
	usbReqGetStatus        = 0x00
	usbReqSetAddress       = 0x05
	usbReqGetDescriptor    = 0x06
	usbReqGetConfiguration = 0x08
	usbReqSetConfiguration = 0x09

	usbReqTypeStandardToDevice    = 0x00
	usbReqTypeStandardFromDevice  = 0x80
	usbReqTypeStandardToInterface = 0x81
	usbReqTypeClassToInterface    = 0x21

	// HID class requests, acknowledged and discarded.
	hidReqSetReport = 0x09
	hidReqSetIdle   = 0x0a

	busIDSize = 32

	errConnReset = -104 // -ECONNRESET
)

// String descriptor index 0 is the language ID table. en-US only.
var langIDDescriptor = []byte{0x04, usb.StringDescType, 0x09, 0x04}

// Server exports a virtual bus over USB/IP on a TCP listener.
type Server struct {
	config    ServerConfig
	logger    *slog.Logger
	rawLogger log.RawLogger
	bus       *virtualbus.Bus
	ready     chan struct{}
	readyOnce sync.Once
	ln        net.Listener
}

// New builds a server for bus. rawLogger receives every wire byte and may be
// a no-op logger.
func New(config ServerConfig, bus *virtualbus.Bus, logger *slog.Logger, rawLogger log.RawLogger) *Server {
	return &Server{
		config:    config,
		logger:    logger.With("server", "usbip"),
		rawLogger: rawLogger,
		bus:       bus,
		ready:     make(chan struct{}),
	}
}

// ListenAndServe accepts and serves USB/IP connections until Close.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.readyOnce.Do(func() { close(s.ready) })
	s.logger.Info("USB/IP server listening", "addr", s.config.Addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.logger.Info("USB/IP server stopped")
				return nil
			}
			s.logger.Error("accept error", "error", err)
			continue
		}
		s.logger.Info("client connected", "remote", conn.RemoteAddr())
		go func() {
			if err := s.handleConn(conn); err != nil {
				if isClientDisconnect(err) {
					s.logger.Info("client disconnected", "error", err)
				} else {
					s.logger.Error("connection handler error", "error", err)
				}
			}
		}()
	}
}

// Ready is closed once the listener is bound and accepting.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Close stops the server by closing its listener. In-flight URB streams end
// when their client disconnects or the device is removed from the bus.
func (s *Server) Close() error {
	if s.ln != nil {
		return s.ln.Close()
	}
	return nil
}

// ListenPort returns the port of the configured listen address, or 0 if the
// address has no parseable port.
func (s *Server) ListenPort() uint16 {
	_, portStr, err := net.SplitHostPort(s.config.Addr)
	if err != nil {
		return 0
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return 0
	}
	return uint16(port)
}

func (s *Server) handleConn(conn net.Conn) error {
	defer conn.Close()
	conn = &logConn{Conn: conn, raw: s.rawLogger}
	if s.config.ConnectionTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(s.config.ConnectionTimeout)); err != nil {
			s.logger.Warn("failed to set connection deadline", "error", err)
		}
	}

	hdr, err := usbip.ReadMgmtHeader(conn)
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if hdr.Version != usbip.Version {
		return fmt.Errorf("protocol violation: version 0x%04x", hdr.Version)
	}

	switch hdr.Command {
	case usbip.OpReqDevlist:
		s.logger.Info("OP_REQ_DEVLIST")
		return s.handleDevList(conn)
	case usbip.OpReqImport:
		s.logger.Info("OP_REQ_IMPORT")
		dev, err := s.handleImport(conn)
		if err != nil {
			return fmt.Errorf("handle import: %w", err)
		}
		return s.handleUrbStream(conn, dev)
	}
	return fmt.Errorf("protocol violation: unknown op 0x%04x", hdr.Command)
}

func exportedDevice(exp virtualbus.Export) usbip.ExportedDevice {
	desc := exp.Dev.GetDescriptor()
	out := usbip.ExportedDevice{
		ExportMeta:          exp.Meta,
		Speed:               desc.Device.Speed,
		IDVendor:            desc.Device.IDVendor,
		IDProduct:           desc.Device.IDProduct,
		BcdDevice:           desc.Device.BcdDevice,
		BDeviceClass:        desc.Device.BDeviceClass,
		BDeviceSubClass:     desc.Device.BDeviceSubClass,
		BDeviceProtocol:     desc.Device.BDeviceProtocol,
		BConfigurationValue: desc.Config.BConfigurationValue,
		BNumConfigurations:  desc.Device.BNumConfigurations,
		BNumInterfaces:      uint8(len(desc.Interfaces)),
	}
	for _, iface := range desc.Interfaces {
		out.Interfaces = append(out.Interfaces, usbip.InterfaceTriplet{
			Class:    iface.Descriptor.BInterfaceClass,
			SubClass: iface.Descriptor.BInterfaceSubClass,
			Protocol: iface.Descriptor.BInterfaceProtocol,
		})
	}
	return out
}

func (s *Server) handleDevList(conn net.Conn) error {
	_ = conn.SetDeadline(time.Time{})
	exports := s.bus.Exports()

	var buf bytes.Buffer
	rep := usbip.MgmtHeader{Version: usbip.Version, Command: usbip.OpRepDevlist}
	_ = rep.Write(&buf)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(exports)))
	for _, exp := range exports {
		dev := exportedDevice(exp)
		_ = dev.WriteDevlist(&buf)
	}
	if _, err := conn.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write devlist reply: %w", err)
	}
	return nil
}

func (s *Server) handleImport(conn net.Conn) (usb.Device, error) {
	var busIDBuf [busIDSize]byte
	if err := usbip.ReadExactly(conn, busIDBuf[:]); err != nil {
		return nil, fmt.Errorf("read import busid: %w", err)
	}
	reqBus := string(busIDBuf[:])
	if i := bytes.IndexByte(busIDBuf[:], 0); i >= 0 {
		reqBus = string(busIDBuf[:i])
	}
	s.logger.Info("import request", "busid", reqBus)

	exp, ok := s.bus.Find(reqBus)
	if !ok {
		rep := usbip.MgmtHeader{Version: usbip.Version, Command: usbip.OpRepImport, Status: 1}
		_ = rep.Write(conn)
		return nil, fmt.Errorf("no device matches busid %q", reqBus)
	}

	var buf bytes.Buffer
	rep := usbip.MgmtHeader{Version: usbip.Version, Command: usbip.OpRepImport}
	_ = rep.Write(&buf)
	dev := exportedDevice(exp)
	_ = dev.WriteImport(&buf)
	if _, err := conn.Write(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("write import reply: %w", err)
	}
	return exp.Dev, nil
}

// handleUrbStream serves submits and unlinks until the client disconnects or
// the device leaves the bus. Transfers are answered synchronously: the host's
// interrupt polling cadence is exactly the rate at which the device's report
// source is pumped.
func (s *Server) handleUrbStream(conn net.Conn, dev usb.Device) error {
	_ = conn.SetDeadline(time.Time{})

	ctx := s.bus.Context(dev)
	if ctx == nil {
		return fmt.Errorf("device is not attached to the bus")
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("device removed, closing URB stream")
			return nil
		default:
		}

		basic, err := usbip.ReadHeaderBasic(conn)
		if err != nil {
			return fmt.Errorf("read URB header: %w", err)
		}

		switch basic.Command {
		case usbip.CmdUnlinkCode:
			var unlink usbip.CmdUnlink
			unlink.Basic = basic
			if err := unlink.ReadBody(conn); err != nil {
				return fmt.Errorf("read unlink body: %w", err)
			}
			s.logger.Debug("USBIP_CMD_UNLINK", "seqnum", basic.Seqnum, "unlink", unlink.UnlinkSeqnum)
			ret := usbip.RetUnlink{
				Basic:  usbip.HeaderBasic{Command: usbip.RetUnlinkCode, Seqnum: basic.Seqnum},
				Status: errConnReset,
			}
			if err := ret.Write(conn); err != nil {
				return fmt.Errorf("write RET_UNLINK: %w", err)
			}

		case usbip.CmdSubmitCode:
			var submit usbip.CmdSubmit
			submit.Basic = basic
			if err := submit.ReadBody(conn); err != nil {
				return fmt.Errorf("read submit body: %w", err)
			}

			var outPayload []byte
			if basic.Dir == usbip.DirOut && submit.TransferBufferLen > 0 {
				outPayload = make([]byte, submit.TransferBufferLen)
				if err := usbip.ReadExactly(conn, outPayload); err != nil {
					return fmt.Errorf("read OUT payload: %w", err)
				}
			}

			respData := processSubmit(dev, basic.Ep, basic.Dir, submit.Setup[:], outPayload)

			ret := usbip.RetSubmit{
				Basic:        usbip.HeaderBasic{Command: usbip.RetSubmitCode, Seqnum: basic.Seqnum},
				ActualLength: uint32(len(respData)),
			}
			var out bytes.Buffer
			if err := ret.Write(&out); err != nil {
				return fmt.Errorf("build RET_SUBMIT: %w", err)
			}
			out.Write(respData)
			if _, err := conn.Write(out.Bytes()); err != nil {
				return fmt.Errorf("write RET_SUBMIT: %w", err)
			}

		default:
			return fmt.Errorf("unsupported URB command %d (seqnum=%d)", basic.Command, basic.Seqnum)
		}
	}
}

// processSubmit answers EP0 control transfers from the device's static
// descriptor set and routes everything else through the device.
func processSubmit(dev usb.Device, ep uint32, dir uint32, setup []byte, out []byte) []byte {
	if ep != 0 {
		return dev.HandleTransfer(ep, dir, out)
	}
	if len(setup) != 8 {
		return nil
	}
	bmRequestType := setup[0]
	bRequest := setup[1]
	wValue := binary.LittleEndian.Uint16(setup[2:4])
	wIndex := binary.LittleEndian.Uint16(setup[4:6])
	wLength := binary.LittleEndian.Uint16(setup[6:8])

	desc := dev.GetDescriptor()

	switch {
	case bmRequestType == usbReqTypeStandardToDevice &&
		(bRequest == usbReqSetAddress || bRequest == usbReqSetConfiguration):
		return nil

	case bmRequestType == usbReqTypeStandardFromDevice && bRequest == usbReqGetConfiguration:
		return []byte{desc.Config.BConfigurationValue}

	case bmRequestType == usbReqTypeStandardFromDevice && bRequest == usbReqGetStatus:
		return []byte{0x00, 0x00}

	case bmRequestType == usbReqTypeClassToInterface &&
		(bRequest == hidReqSetIdle || bRequest == hidReqSetReport):
		return nil

	case bmRequestType == usbReqTypeStandardFromDevice && bRequest == usbReqGetDescriptor:
		var data []byte
		switch uint8(wValue >> 8) {
		case usb.DeviceDescType:
			data = desc.Device.Bytes()
		case usb.ConfigDescType:
			data = desc.ConfigBytes()
		case usb.StringDescType:
			if index := uint8(wValue & 0xff); index == 0 {
				data = langIDDescriptor
			} else if str, ok := desc.Strings[index]; ok {
				data = usb.EncodeStringDescriptor(str)
			}
		}
		return clipDescriptor(data, wLength)

	case bmRequestType == usbReqTypeStandardToInterface && bRequest == usbReqGetDescriptor:
		ifaceNum := int(wIndex & 0xff)
		var data []byte
		if ifaceNum < len(desc.Interfaces) {
			iface := desc.Interfaces[ifaceNum]
			switch uint8(wValue >> 8) {
			case usb.HIDDescType:
				if iface.HID != nil {
					data = iface.HID.Bytes()
				}
			case usb.ReportDescType:
				data = iface.HIDReport
			}
		}
		return clipDescriptor(data, wLength)
	}
	return nil
}

// clipDescriptor truncates a descriptor reply to the host's wLength.
func clipDescriptor(data []byte, wLength uint16) []byte {
	if len(data) == 0 {
		return nil
	}
	if int(wLength) < len(data) {
		return data[:wLength]
	}
	return data
}

// logConn mirrors everything read and written into the raw wire logger.
type logConn struct {
	net.Conn
	raw log.RawLogger
}

func (lc *logConn) Read(p []byte) (int, error) {
	n, err := lc.Conn.Read(p)
	if n > 0 && lc.raw != nil {
		lc.raw.Log(true, p[:n])
	}
	return n, err
}

func (lc *logConn) Write(p []byte) (int, error) {
	n, err := lc.Conn.Write(p)
	if n > 0 && lc.raw != nil {
		lc.raw.Log(false, p[:n])
	}
	return n, err
}

// isClientDisconnect tests whether an error represents a normal client
// disconnect rather than a protocol failure.
func isClientDisconnect(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errno, ok := opErr.Err.(syscall.Errno); ok {
			if errno == syscall.ECONNRESET || errno == syscall.EPIPE {
				return true
			}
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "forcibly closed") ||
		strings.Contains(msg, "broken pipe")
}
