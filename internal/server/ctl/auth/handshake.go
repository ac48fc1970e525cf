package auth

import (
	"bufio"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
)

const (
	// HandshakeMagic opens an authenticated connection; anything else is a
	// plaintext request.
	HandshakeMagic = "eIP1\x00"
	NonceSize      = 32
	authContext    = "inkpad-auth-v1"
)

// ErrInvalidPassword is returned by the server side of the handshake when
// the client's proof does not verify.
var ErrInvalidPassword = errors.New("invalid password")

// IsHandshake checks whether the next bytes in the reader open an
// authenticated connection, without consuming them.
func IsHandshake(r *bufio.Reader) (bool, error) {
	b, err := r.Peek(len(HandshakeMagic))
	if err != nil {
		return false, err
	}
	return string(b) == HandshakeMagic, nil
}

// ClientHandshake sends the magic, a fresh nonce and an HMAC proof of the
// key, then reads the server's nonce. The returned nonces feed
// DeriveSessionKey.
func ClientHandshake(r *bufio.Reader, w io.Writer, key []byte) (clientNonce, serverNonce []byte, err error) {
	if len(key) == 0 {
		return nil, nil, errors.New("handshake: missing key")
	}

	clientNonce = make([]byte, NonceSize)
	if _, err := rand.Read(clientNonce); err != nil {
		return nil, nil, fmt.Errorf("generate client nonce: %w", err)
	}

	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(authContext))
	_, _ = mac.Write(clientNonce)
	proof := mac.Sum(nil)

	msg := append([]byte(HandshakeMagic), clientNonce...)
	msg = append(msg, proof...)
	if _, err := w.Write(msg); err != nil {
		return nil, nil, fmt.Errorf("write handshake: %w", err)
	}

	prefix := make([]byte, 3)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, nil, fmt.Errorf("read handshake response: %w", err)
	}
	if string(prefix) != "OK\x00" {
		rest, _ := io.ReadAll(r)
		return nil, nil, &RejectedError{Raw: append(prefix, rest...)}
	}

	serverNonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(r, serverNonce); err != nil {
		return nil, nil, fmt.Errorf("read server nonce: %w", err)
	}
	return clientNonce, serverNonce, nil
}

// ServerHandshake consumes the client's handshake, verifies the proof and
// replies "OK\0" plus a fresh server nonce. A failed proof returns
// ErrInvalidPassword; the caller decides what, if anything, to tell the
// client.
func ServerHandshake(r *bufio.Reader, w io.Writer, key []byte) (clientNonce, serverNonce []byte, err error) {
	if len(key) == 0 {
		return nil, nil, errors.New("handshake: missing key")
	}

	if _, err := r.Discard(len(HandshakeMagic)); err != nil {
		return nil, nil, fmt.Errorf("discard handshake magic: %w", err)
	}

	clientNonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(r, clientNonce); err != nil {
		return nil, nil, fmt.Errorf("read client nonce: %w", err)
	}

	proof := make([]byte, sha256.Size)
	if _, err := io.ReadFull(r, proof); err != nil {
		return nil, nil, fmt.Errorf("read client proof: %w", err)
	}

	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(authContext))
	_, _ = mac.Write(clientNonce)
	if !hmac.Equal(proof, mac.Sum(nil)) {
		return nil, nil, ErrInvalidPassword
	}

	serverNonce = make([]byte, NonceSize)
	if _, err := rand.Read(serverNonce); err != nil {
		return nil, nil, fmt.Errorf("generate server nonce: %w", err)
	}
	response := append([]byte("OK\x00"), serverNonce...)
	if _, err := w.Write(response); err != nil {
		return nil, nil, fmt.Errorf("write response: %w", err)
	}
	return clientNonce, serverNonce, nil
}

// RejectedError carries whatever the server sent instead of "OK\0", usually
// a problem-JSON body the caller can decode.
type RejectedError struct {
	Raw []byte
}

func (e *RejectedError) Error() string {
	return "handshake rejected: " + string(e.Raw)
}
