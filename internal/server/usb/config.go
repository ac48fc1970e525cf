package usb

import "time"

// ServerConfig is the USB/IP listener configuration.
type ServerConfig struct {
	Addr              string        `help:"USB/IP server listen address." default:":3241" env:"INKPAD_USB_ADDR"`
	ConnectionTimeout time.Duration `kong:"-"`
}
