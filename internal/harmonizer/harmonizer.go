// Package harmonizer implements the Drift Harmonizer: a pure, stateless
// advisory function over a proposed payload change. It never gates a
// decision — its outputs are surfaced for logging and telemetry only.
package harmonizer

import (
	"encoding/json"
	"math"

	"github.com/octoreflex/cognition/internal/corekit"
)

// Harmonizer holds the two advisory thresholds. They are never consulted by
// ComputeDrift/Reflect/Approve; callers may read them for their own
// logging decisions.
type Harmonizer struct {
	DriftThreshold float64
	MoralThreshold float64
}

// New builds a Harmonizer with the given advisory thresholds.
func New(driftThreshold, moralThreshold float64) *Harmonizer {
	return &Harmonizer{DriftThreshold: driftThreshold, MoralThreshold: moralThreshold}
}

// ComputeDrift implements the baseline length-proxy drift formula.
//
// When newPayload is present: drift is the relative change in serialized
// length of new vs old, optionally adjusted by the change in a "moral" key
// present in both payloads. When newPayload is nil (a proposed deletion),
// drift is the negation of old's "moral" value (0 if absent). The result is
// always clamped to [-1, +1].
func (h *Harmonizer) ComputeDrift(oldPayload, newPayload map[string]any) float64 {
	if newPayload == nil {
		oldMoral, _ := moralOf(oldPayload)
		return corekit.Clamp(-oldMoral, -1, 1)
	}

	oldLen := float64(serializedLen(oldPayload))
	newLen := float64(serializedLen(newPayload))
	drift := (newLen - oldLen) / math.Max(1, oldLen)

	oldMoral, oldHas := moralOf(oldPayload)
	newMoral, newHas := moralOf(newPayload)
	if oldHas && newHas {
		drift += newMoral - oldMoral
	}

	return corekit.Clamp(drift, -1, 1)
}

// Reflect computes the drift and the resulting adjusted moral charge for a
// shard's resonance, given its current moral_charge and intensity.
func (h *Harmonizer) Reflect(oldPayload, newPayload map[string]any, moralCharge, intensity float64) (drift, adjustedMoral float64) {
	drift = h.ComputeDrift(oldPayload, newPayload)
	adjustedMoral = corekit.Clamp(moralCharge+drift*intensity, -1, 1)
	return drift, adjustedMoral
}

// Approve always returns true for the bool in the current contract; the
// return is reserved for future policy and callers must treat it as
// advisory only, never as a gate.
func (h *Harmonizer) Approve(oldPayload, newPayload map[string]any, moralCharge, intensity float64) (approved bool, drift, adjustedMoral float64) {
	drift, adjustedMoral = h.Reflect(oldPayload, newPayload, moralCharge, intensity)
	return true, drift, adjustedMoral
}

// DecisionHash returns a reproducible content hash of a harmonizer decision,
// for attaching to audit entries and cross-checking replayed reflections.
func (h *Harmonizer) DecisionHash(oldPayload, newPayload map[string]any, drift, adjustedMoral float64) (string, error) {
	return corekit.CanonicalDigest(struct {
		Old           map[string]any `json:"old"`
		New           map[string]any `json:"new"`
		Drift         float64        `json:"drift"`
		AdjustedMoral float64        `json:"adjusted_moral"`
	}{Old: oldPayload, New: newPayload, Drift: drift, AdjustedMoral: adjustedMoral})
}

// serializedLen returns the length of payload's canonical JSON encoding.
// A malformed payload (marshal failure) degrades to 0 rather than failing —
// the harmonizer never fails.
func serializedLen(payload map[string]any) int {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0
	}
	return len(data)
}

// moralOf extracts payload["moral"] as a float64 if present and numeric.
func moralOf(payload map[string]any) (float64, bool) {
	if payload == nil {
		return 0, false
	}
	v, ok := payload["moral"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
