package policy

import (
	"github.com/gyaneshwarpardhi/hookrelay/internal/config"
	"github.com/gyaneshwarpardhi/hookrelay/internal/event"
	"github.com/gyaneshwarpardhi/hookrelay/internal/throttle"
	"github.com/gyaneshwarpardhi/hookrelay/internal/whatsapp"
)

// Policy is the interface all reply strategies must satisfy.
type Policy interface {
	// Name returns the string key this policy is registered under.
	Name() string
	// Build turns an inbound event into the outbound reply. It has no side effects.
	Build(ev event.InboundEvent) whatsapp.OutboundMessage
	// Gate returns the cooldown store guarding sends, or nil when every
	// event is answered.
	Gate() throttle.Store
}

// Unconditional answers every inbound message with the configured template.
type Unconditional struct {
	template, language string
}

func NewUnconditional(template, language string) *Unconditional {
	return &Unconditional{template: template, language: language}
}

func (p *Unconditional) Name() string { return config.PolicyUnconditional }

func (p *Unconditional) Build(ev event.InboundEvent) whatsapp.OutboundMessage {
	return whatsapp.NewTemplateMessage(ev.From, p.template, p.language)
}

func (p *Unconditional) Gate() throttle.Store { return nil }

// Cooldown sends the template at most once per sender per window.
type Cooldown struct {
	Unconditional
	store throttle.Store
}

func NewCooldown(template, language string, store throttle.Store) *Cooldown {
	return &Cooldown{Unconditional: Unconditional{template: template, language: language}, store: store}
}

func (p *Cooldown) Name() string { return config.PolicyCooldown }

func (p *Cooldown) Gate() throttle.Store { return p.store }

// Content answers every inbound message with fixed help text.
type Content struct {
	text string
}

func NewContent(text string) *Content { return &Content{text: text} }

func (p *Content) Name() string { return config.PolicyContent }

func (p *Content) Build(ev event.InboundEvent) whatsapp.OutboundMessage {
	return whatsapp.NewTextMessage(ev.From, p.text)
}

func (p *Content) Gate() throttle.Store { return nil }
