package auth

import (
	"bytes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// Packet layout on the wire: length(4, big-endian) | nonce(12) |
// ciphertext. The length covers nonce plus ciphertext. Nonces carry a
// per-direction counter in their low eight bytes, so the format never
// repeats one under the same key.
const (
	packetLenSize = 4
	maxPacketSize = 2 << 20
)

// secureConn is a net.Conn whose payload is sealed with ChaCha20-Poly1305
// under the session key. Each Write emits one packet; Read unpacks one
// packet at a time and hands out plaintext from a buffer.
type secureConn struct {
	net.Conn

	aead cipher.AEAD

	wmu     sync.Mutex
	sendCtr uint64

	plain bytes.Buffer
}

// WrapConn layers packet encryption over conn using the derived session
// key. Both peers wrap after a successful handshake; the format is
// symmetric.
func WrapConn(conn net.Conn, sessionKey []byte) (net.Conn, error) {
	aead, err := chacha20poly1305.New(sessionKey)
	if err != nil {
		return nil, fmt.Errorf("session cipher: %w", err)
	}
	return &secureConn{Conn: conn, aead: aead}, nil
}

func (c *secureConn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	var nonce [chacha20poly1305.NonceSize]byte
	binary.BigEndian.PutUint64(nonce[len(nonce)-8:], c.sendCtr)
	c.sendCtr++

	// Assemble the whole packet so the kernel sees a single write and
	// concurrent writers cannot interleave frames.
	pkt := make([]byte, packetLenSize, packetLenSize+len(nonce)+len(p)+c.aead.Overhead())
	pkt = append(pkt, nonce[:]...)
	pkt = c.aead.Seal(pkt, nonce[:], p, nil)
	binary.BigEndian.PutUint32(pkt[:packetLenSize], uint32(len(pkt)-packetLenSize))

	if _, err := c.Conn.Write(pkt); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *secureConn) Read(p []byte) (int, error) {
	if c.plain.Len() == 0 {
		if err := c.readPacket(); err != nil {
			return 0, err
		}
	}
	return c.plain.Read(p)
}

func (c *secureConn) readPacket() error {
	var hdr [packetLenSize]byte
	if _, err := io.ReadFull(c.Conn, hdr[:]); err != nil {
		return err
	}
	length := binary.BigEndian.Uint32(hdr[:])
	if length < chacha20poly1305.NonceSize || length > maxPacketSize {
		return fmt.Errorf("bad packet length %d", length)
	}

	pkt := make([]byte, length)
	if _, err := io.ReadFull(c.Conn, pkt); err != nil {
		return err
	}

	nonce, ct := pkt[:chacha20poly1305.NonceSize], pkt[chacha20poly1305.NonceSize:]
	pt, err := c.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return fmt.Errorf("open packet: %w", err)
	}
	c.plain.Write(pt)
	return nil
}
