package pokkenpad

// USB identity of the HORI Pokkén Tournament DX Pro Pad. The pad is a plain
// full-speed HID gamepad with no rumble and no motion, which is exactly why
// hosts accept it without any vendor handshake.
const (
	VendorID  = 0x0f0d
	ProductID = 0x0092
)

// InputReportLen is the size of one interrupt IN report.
const InputReportLen = 8

// Button bits of Report.Buttons.
const (
	ButtonY      uint16 = 0x0001
	ButtonB      uint16 = 0x0002
	ButtonA      uint16 = 0x0004
	ButtonX      uint16 = 0x0008
	ButtonL      uint16 = 0x0010
	ButtonR      uint16 = 0x0020
	ButtonZL     uint16 = 0x0040
	ButtonZR     uint16 = 0x0080
	ButtonMinus  uint16 = 0x0100
	ButtonPlus   uint16 = 0x0200
	ButtonLClick uint16 = 0x0400
	ButtonRClick uint16 = 0x0800
	ButtonHome   uint16 = 0x1000
	ButtonCapt   uint16 = 0x2000
)

// Hat switch positions, clockwise from up; 8 is the null state.
const (
	HatUp        uint8 = 0x00
	HatUpRight   uint8 = 0x01
	HatRight     uint8 = 0x02
	HatDownRight uint8 = 0x03
	HatDown      uint8 = 0x04
	HatDownLeft  uint8 = 0x05
	HatLeft      uint8 = 0x06
	HatUpLeft    uint8 = 0x07
	HatCenter    uint8 = 0x08
)

// Stick axis travel.
const (
	StickMin    uint8 = 0x00
	StickCenter uint8 = 0x80
	StickMax    uint8 = 0xff
)
