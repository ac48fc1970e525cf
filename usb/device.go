package usb

// Device is the contract a virtual device implements. EP0 standard requests
// are answered by the transport from GetDescriptor data; everything else is
// routed through HandleTransfer.
type Device interface {
	// HandleTransfer processes one non-EP0 transfer. ep is the endpoint
	// number without the direction bit, dir distinguishes IN from OUT.
	// IN transfers return the payload to send; OUT transfers consume out
	// and return nil.
	HandleTransfer(ep uint32, dir uint32, out []byte) []byte
	GetDescriptor() *Descriptor
}
