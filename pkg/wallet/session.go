// Package wallet holds the active account for the dashboard. A session is
// connected when it holds a signing key; listeners registered with OnChange
// are told whenever the account appears, changes or goes away.
package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrNoKey = errors.New("no private key configured")

// Signer is the key material needed to authorize writes.
type Signer struct {
	Address common.Address
	Key     *ecdsa.PrivateKey
}

// Session is the wallet connection state.
type Session struct {
	mu        sync.RWMutex
	signer    *Signer
	listeners map[int]func(account string)
	nextID    int
}

// NewSession returns a disconnected session.
func NewSession() *Session {
	return &Session{listeners: make(map[int]func(string))}
}

// Connect activates the account derived from a hex encoded secp256k1 key.
func (s *Session) Connect(hexKey string) error {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return ErrNoKey
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return fmt.Errorf("invalid private key: %w", err)
	}
	signer := &Signer{Address: crypto.PubkeyToAddress(key.PublicKey), Key: key}

	s.mu.Lock()
	changed := s.signer == nil || s.signer.Address != signer.Address
	s.signer = signer
	s.mu.Unlock()

	if changed {
		s.emit(signer.Address.Hex())
	}
	return nil
}

// Disconnect drops the active account.
func (s *Session) Disconnect() {
	s.mu.Lock()
	was := s.signer != nil
	s.signer = nil
	s.mu.Unlock()

	if was {
		s.emit("")
	}
}

// Account returns the active account address in checksummed form, or false
// when disconnected.
func (s *Session) Account() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.signer == nil {
		return "", false
	}
	return s.signer.Address.Hex(), true
}

// Connected reports whether an account is active.
func (s *Session) Connected() bool {
	_, ok := s.Account()
	return ok
}

// Signer returns the active signer, or nil when disconnected.
func (s *Session) Signer() *Signer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signer
}

// OnChange registers fn to receive the new account ("" on disconnect) and
// returns a function that removes the registration.
func (s *Session) OnChange(fn func(account string)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Session) emit(account string) {
	s.mu.RLock()
	fns := make([]func(string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(account)
	}
}
