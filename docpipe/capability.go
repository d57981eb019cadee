package docpipe

import (
	"os/exec"
	"sort"
)

// Capability is an optional feature whose presence depends on the deployment.
type Capability string

const (
	CapOCR            Capability = "ocr"
	CapGenericConvert Capability = "generic-convert"
)

// Capabilities is an immutable capability set. It is resolved once when the
// Pipeline is built and only read afterwards.
type Capabilities struct {
	set map[Capability]bool
}

// NewCapabilities returns a set holding exactly caps.
func NewCapabilities(caps ...Capability) Capabilities {
	set := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		set[c] = true
	}
	return Capabilities{set: set}
}

// Has reports whether c is present.
func (c Capabilities) Has(capability Capability) bool {
	return c.set[capability]
}

// List returns the present capabilities, sorted.
func (c Capabilities) List() []string {
	out := make([]string, 0, len(c.set))
	for k := range c.set {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}

// DetectCapabilities probes the environment for the OCR and generic
// converter binaries named in cfg.
func DetectCapabilities(cfg Config) Capabilities {
	cfg.defaults()
	var caps []Capability
	if !cfg.DisableOCR && onPath(cfg.OCRCommand) {
		caps = append(caps, CapOCR)
	}
	if !cfg.DisableGeneric && onPath(cfg.GenericCommand) {
		caps = append(caps, CapGenericConvert)
	}
	return NewCapabilities(caps...)
}

func onPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
