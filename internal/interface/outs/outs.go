package outs

import (
	"context"
	"fmt"
	"sync"

	"modBot/internal/domain"
)

// MultiSender enruta los mensajes al transporte correcto según la plataforma.
// Implementa domain.ChatTransport delegando en la plataforma por defecto.
type MultiSender struct {
	mu         sync.RWMutex
	transports map[domain.Platform]domain.ChatTransport
	fallback   domain.Platform
}

var _ domain.ChatTransport = (*MultiSender)(nil)

// NewMultiSender crea un MultiSender vacío que usa fallback cuando no se indica plataforma.
func NewMultiSender(fallback domain.Platform) *MultiSender {
	return &MultiSender{
		transports: make(map[domain.Platform]domain.ChatTransport),
		fallback:   fallback,
	}
}

// Register asocia una plataforma con un transporte concreto.
func (m *MultiSender) Register(platform domain.Platform, t domain.ChatTransport) {
	if m == nil || t == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transports[platform] = t
}

// Unregister elimina el transporte de una plataforma.
func (m *MultiSender) Unregister(platform domain.Platform) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.transports, platform)
}

// For devuelve el transporte de una plataforma.
func (m *MultiSender) For(platform domain.Platform) (domain.ChatTransport, error) {
	if m == nil {
		return nil, fmt.Errorf("no hay multi sender configurado")
	}
	if platform == "" {
		platform = m.fallback
	}
	m.mu.RLock()
	t, ok := m.transports[platform]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no hay transporte registrado para la plataforma %s", platform)
	}
	return t, nil
}

func (m *MultiSender) Send(ctx context.Context, channel, text string, opts domain.SendOptions) error {
	t, err := m.For("")
	if err != nil {
		return err
	}
	return t.Send(ctx, channel, text, opts)
}

func (m *MultiSender) Action(ctx context.Context, channel, text string) error {
	t, err := m.For("")
	if err != nil {
		return err
	}
	return t.Action(ctx, channel, text)
}

func (m *MultiSender) Join(ctx context.Context, channel string) error {
	t, err := m.For("")
	if err != nil {
		return err
	}
	return t.Join(ctx, channel)
}

func (m *MultiSender) Part(ctx context.Context, channel string) error {
	t, err := m.For("")
	if err != nil {
		return err
	}
	return t.Part(ctx, channel)
}

func (m *MultiSender) Channels() []string {
	t, err := m.For("")
	if err != nil {
		return nil
	}
	return t.Channels()
}
