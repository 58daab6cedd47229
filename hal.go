package main

import (
	"fmt"
	"sync"
)

// The external control process talks to us through named pins, the way a
// LinuxCNC HAL component exposes them. Per-key pins are namespaced as
// page.<N>.<alias>.<suffix>; the two process-wide pins are page-select and
// page-current. The real substrate lives outside this program, so the core
// only depends on the PinStore contract.

// PinDir is the direction of a pin as seen from this component.
type PinDir int

const (
	PinIn  PinDir = iota // written by the external process, read by us
	PinOut               // written by us, read by the external process
)

// PinStore declares and accesses named typed pins.
type PinStore interface {
	DeclareBit(name string, dir PinDir) error
	DeclareFloat(name string, dir PinDir) error
	DeclareS32(name string, dir PinDir) error

	Bit(name string) (bool, error)
	SetBit(name string, v bool) error
	Float(name string) (float64, error)
	SetFloat(name string, v float64) error
	S32(name string) (int32, error)
	SetS32(name string, v int32) error
}

type pinType int

const (
	pinBit pinType = iota
	pinFloat
	pinS32
)

type pin struct {
	typ pinType
	dir PinDir
	b   bool
	f   float64
	i   int32
}

// PinRegistry is the in-process side of the pin substrate: a thread safe
// name -> value store. Everything that wants a pin gets handed a registry
// explicitly; there is no package level instance.
type PinRegistry struct {
	mu   sync.RWMutex
	pins map[string]*pin
}

func NewPinRegistry() *PinRegistry {
	return &PinRegistry{pins: make(map[string]*pin)}
}

func (r *PinRegistry) declare(name string, typ pinType, dir PinDir) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pins[name]; ok {
		return fmt.Errorf("pin %q already declared", name)
	}
	r.pins[name] = &pin{typ: typ, dir: dir}
	return nil
}

func (r *PinRegistry) DeclareBit(name string, dir PinDir) error {
	return r.declare(name, pinBit, dir)
}

func (r *PinRegistry) DeclareFloat(name string, dir PinDir) error {
	return r.declare(name, pinFloat, dir)
}

func (r *PinRegistry) DeclareS32(name string, dir PinDir) error {
	return r.declare(name, pinS32, dir)
}

func (r *PinRegistry) get(name string, typ pinType) (*pin, error) {
	p, ok := r.pins[name]
	if !ok {
		return nil, fmt.Errorf("no pin %q", name)
	}
	if p.typ != typ {
		return nil, fmt.Errorf("pin %q has wrong type", name)
	}
	return p, nil
}

func (r *PinRegistry) Bit(name string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, err := r.get(name, pinBit)
	if err != nil {
		return false, err
	}
	return p.b, nil
}

func (r *PinRegistry) SetBit(name string, v bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.get(name, pinBit)
	if err != nil {
		return err
	}
	p.b = v
	return nil
}

func (r *PinRegistry) Float(name string) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, err := r.get(name, pinFloat)
	if err != nil {
		return 0, err
	}
	return p.f, nil
}

func (r *PinRegistry) SetFloat(name string, v float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.get(name, pinFloat)
	if err != nil {
		return err
	}
	p.f = v
	return nil
}

func (r *PinRegistry) S32(name string) (int32, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, err := r.get(name, pinS32)
	if err != nil {
		return 0, err
	}
	return p.i, nil
}

func (r *PinRegistry) SetS32(name string, v int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.get(name, pinS32)
	if err != nil {
		return err
	}
	p.i = v
	return nil
}
