// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package secrets holds API tokens in sealed memory.
//
// Tokens (InfluxDB, object storage) are kept in memguard enclaves so the
// plaintext never sits in swappable pages while the process runs. Systems
// without a usable mlock limit either fail fast or, with
// DEVPULSE_INSECURE_MEMORY=true, fall back to a plain in-process store
// with a logged warning.
package secrets

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/awnumar/memguard"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxSecretLen bounds a single secret. API tokens are far smaller; the
	// cap catches a config value pasted into the wrong field.
	MaxSecretLen = 4 * 1024

	// MinMlockLimitKB is the minimum mlock limit required in kilobytes.
	// memguard allocates page-aligned buffers with guard pages, so a
	// handful of small secrets still needs tens of kilobytes locked.
	MinMlockLimitKB = 64

	// insecureEnvVar acknowledges running without locked memory.
	insecureEnvVar = "DEVPULSE_INSECURE_MEMORY"
)

// Sentinel errors for the secrets package.
var (
	// ErrNotFound is returned when a named secret does not exist.
	ErrNotFound = errors.New("secret not found")

	// ErrDestroyed is returned when the vault has been destroyed.
	ErrDestroyed = errors.New("vault already destroyed")
)

// =============================================================================
// Package Variables
// =============================================================================

var (
	// memguardInitOnce ensures memguard initialization happens only once.
	memguardInitOnce sync.Once

	// mlockSufficient is set during initialization to indicate if secure memory is available.
	mlockSufficient bool

	// currentMlockLimitKB stores the current mlock limit for logging.
	currentMlockLimitKB int64
)

// =============================================================================
// Interface
// =============================================================================

// Vault stores named secrets and controls how their plaintext is exposed.
//
// # Description
//
// Vault abstracts secret storage, allowing a secure (memguard enclave) or
// insecure (plain memory) implementation depending on system capabilities.
// Plaintext is only materialized inside Use, or copied out by Reveal for
// clients that require a string (the InfluxDB client takes its token that
// way).
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
//
// # Examples
//
//	vault, err := secrets.New()
//	if err != nil {
//	    return err
//	}
//	defer vault.Destroy()
//
//	vault.PutString("influx_token", token)
//	token, _ := vault.Reveal("influx_token")
type Vault interface {
	// Put seals value under name. The input slice is wiped after sealing;
	// callers must not reuse it.
	Put(name string, value []byte) error

	// PutString copies value and seals the copy. The original string
	// cannot be wiped; prefer Put when the caller owns a byte slice.
	PutString(name, value string) error

	// Use invokes fn with the plaintext. The buffer is wiped when fn
	// returns; fn must not retain it.
	Use(name string, fn func(value []byte) error) error

	// Reveal returns the plaintext as a string copy. The copy is subject
	// to garbage collection like any other string; use it immediately and
	// let it go.
	Reveal(name string) (string, error)

	// Delete removes a secret. Deleting a missing name is a no-op.
	Delete(name string)

	// Names returns the stored secret names in sorted order.
	Names() []string

	// Destroy drops all secrets. The vault is unusable afterwards.
	// Safe to call multiple times (idempotent).
	Destroy()

	// Secure reports whether secrets live in locked memory. False means
	// the insecure fallback is active and plaintext may reach swap.
	Secure() bool
}

// =============================================================================
// Constructor Functions
// =============================================================================

// New creates a vault backed by memguard enclaves.
//
// # Description
//
// Probes the system mlock limit on first use. If the limit is insufficient
// and DEVPULSE_INSECURE_MEMORY is not set, returns an error. If
// DEVPULSE_INSECURE_MEMORY=true, falls back to an insecure vault with a
// warning.
//
// # Outputs
//
//   - Vault: Ready for use (may be secure or insecure based on system)
//   - error: Non-nil if secure memory is unavailable and no fallback allowed
func New() (Vault, error) {
	initMemguard()

	if !mlockSufficient {
		return handleInsufficientMlock()
	}

	return &enclaveVault{enclaves: make(map[string]*memguard.Enclave)}, nil
}

// newInsecureVault creates the plain-memory fallback vault.
//
// Used when secure memory is unavailable and the operator has acknowledged
// the risk via DEVPULSE_INSECURE_MEMORY=true.
func newInsecureVault() Vault {
	slog.Warn("Created INSECURE secrets vault - tokens may be swapped to disk")
	return &insecureVault{data: make(map[string][]byte)}
}

// =============================================================================
// Secure Implementation
// =============================================================================

// enclaveVault seals each secret in its own memguard enclave.
//
// Enclaves hold ciphertext; plaintext exists only in the short-lived
// LockedBuffer that Open returns, which is destroyed before Use returns.
type enclaveVault struct {
	mu        sync.RWMutex
	enclaves  map[string]*memguard.Enclave
	destroyed bool
}

func (v *enclaveVault) Put(name string, value []byte) error {
	if err := validateSecret(name, len(value)); err != nil {
		wipe(value)
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.destroyed {
		wipe(value)
		return ErrDestroyed
	}

	// NewEnclave wipes the source slice after sealing
	v.enclaves[name] = memguard.NewEnclave(value)
	return nil
}

func (v *enclaveVault) PutString(name, value string) error {
	return v.Put(name, []byte(value))
}

func (v *enclaveVault) Use(name string, fn func(value []byte) error) error {
	v.mu.RLock()
	if v.destroyed {
		v.mu.RUnlock()
		return ErrDestroyed
	}
	e, ok := v.enclaves[name]
	v.mu.RUnlock()

	if !ok {
		return fmt.Errorf("secret %q: %w", name, ErrNotFound)
	}

	buf, err := e.Open()
	if err != nil {
		return fmt.Errorf("open enclave %q: %w", name, err)
	}
	defer buf.Destroy()

	return fn(buf.Bytes())
}

func (v *enclaveVault) Reveal(name string) (string, error) {
	var out string
	err := v.Use(name, func(value []byte) error {
		out = string(value)
		return nil
	})
	return out, err
}

func (v *enclaveVault) Delete(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.enclaves, name)
}

func (v *enclaveVault) Names() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	names := make([]string, 0, len(v.enclaves))
	for name := range v.enclaves {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (v *enclaveVault) Destroy() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.destroyed {
		return
	}

	// Enclaves hold ciphertext only; dropping the references suffices.
	// PurgeAll wipes the session key on shutdown.
	v.enclaves = nil
	v.destroyed = true
	slog.Debug("Destroyed secrets vault")
}

func (v *enclaveVault) Secure() bool { return true }

// =============================================================================
// Insecure Fallback Implementation
// =============================================================================

// insecureVault stores secrets in ordinary Go memory.
//
// Same contract as enclaveVault with best-effort wiping. Data may be
// swapped to disk and copies may survive garbage collection.
type insecureVault struct {
	mu        sync.RWMutex
	data      map[string][]byte
	destroyed bool
}

func (v *insecureVault) Put(name string, value []byte) error {
	if err := validateSecret(name, len(value)); err != nil {
		wipe(value)
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.destroyed {
		wipe(value)
		return ErrDestroyed
	}

	cp := make([]byte, len(value))
	copy(cp, value)
	wipe(value)
	v.data[name] = cp
	return nil
}

func (v *insecureVault) PutString(name, value string) error {
	return v.Put(name, []byte(value))
}

func (v *insecureVault) Use(name string, fn func(value []byte) error) error {
	v.mu.RLock()
	if v.destroyed {
		v.mu.RUnlock()
		return ErrDestroyed
	}
	stored, ok := v.data[name]
	if !ok {
		v.mu.RUnlock()
		return fmt.Errorf("secret %q: %w", name, ErrNotFound)
	}
	cp := make([]byte, len(stored))
	copy(cp, stored)
	v.mu.RUnlock()
	defer wipe(cp)

	return fn(cp)
}

func (v *insecureVault) Reveal(name string) (string, error) {
	var out string
	err := v.Use(name, func(value []byte) error {
		out = string(value)
		return nil
	})
	return out, err
}

func (v *insecureVault) Delete(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	wipe(v.data[name])
	delete(v.data, name)
}

func (v *insecureVault) Names() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	names := make([]string, 0, len(v.data))
	for name := range v.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (v *insecureVault) Destroy() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.destroyed {
		return
	}

	for name, value := range v.data {
		wipe(value)
		delete(v.data, name)
	}
	v.data = nil
	v.destroyed = true
	slog.Debug("Destroyed insecure secrets vault")
}

func (v *insecureVault) Secure() bool { return false }

// =============================================================================
// Helpers
// =============================================================================

// validateSecret rejects unusable names and sizes before any sealing work.
func validateSecret(name string, valueLen int) error {
	if name == "" {
		return errors.New("secret name must not be empty")
	}
	if valueLen == 0 {
		return fmt.Errorf("secret %q: empty value", name)
	}
	if valueLen > MaxSecretLen {
		return fmt.Errorf("secret %q too large: %d bytes (max %d)", name, valueLen, MaxSecretLen)
	}
	return nil
}

// wipe zeroes a byte slice (best effort for plain memory).
func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// =============================================================================
// Package Initialization Functions
// =============================================================================

// initMemguard initializes the memguard library and checks mlock limits.
//
// Performs one-time initialization of memguard and validates that the
// system has sufficient mlock limits for secure memory operations. Called
// automatically when creating the first vault.
func initMemguard() {
	memguardInitOnce.Do(func() {
		memguard.CatchInterrupt()
		mlockSufficient, currentMlockLimitKB = checkMlockLimit()
		logMlockStatus()
	})
}

// logMlockStatus logs the current mlock status.
func logMlockStatus() {
	if mlockSufficient {
		slog.Info("Secure memory initialized",
			"mlock_limit_kb", currentMlockLimitKB,
			"required_kb", MinMlockLimitKB,
			"status", "sufficient",
		)
	} else {
		logInsufficientMlock()
	}
}

// logInsufficientMlock logs a warning about insufficient mlock limits.
func logInsufficientMlock() {
	insecureMode := os.Getenv(insecureEnvVar) == "true"
	if insecureMode {
		slog.Warn("SECURITY: Running with insecure memory - mlock limit insufficient",
			"current_limit_kb", currentMlockLimitKB,
			"required_kb", MinMlockLimitKB,
			"env_override", insecureEnvVar+"=true",
		)
	} else {
		slog.Error("mlock limit insufficient for secure memory",
			"current_limit_kb", currentMlockLimitKB,
			"required_kb", MinMlockLimitKB,
			"help", "Raise the limit or set "+insecureEnvVar+"=true",
		)
	}
}

// handleInsufficientMlock handles the case when mlock limits are insufficient.
func handleInsufficientMlock() (Vault, error) {
	if os.Getenv(insecureEnvVar) == "true" {
		slog.Warn("Using insecure secrets vault due to mlock limits",
			"current_limit_kb", currentMlockLimitKB,
			"required_kb", MinMlockLimitKB,
		)
		return newInsecureVault(), nil
	}
	return nil, fmt.Errorf(
		"mlock limit insufficient: have %d KB, need %d KB. "+
			"Configure system limits or set %s=true",
		currentMlockLimitKB, MinMlockLimitKB, insecureEnvVar,
	)
}

// =============================================================================
// Utility Functions
// =============================================================================

// IsMlockAvailable returns whether secure memory is available on this system.
//
// # Outputs
//
//   - bool: True if secure memory is available
//   - int64: Current mlock limit in KB (-1 if unlimited)
func IsMlockAvailable() (bool, int64) {
	initMemguard()
	return mlockSufficient, currentMlockLimitKB
}

// PurgeAll wipes all memguard-allocated memory and the enclave session key.
//
// Should be called during graceful shutdown so sealed secrets cannot be
// recovered from a core dump. Automatically invoked on SIGINT/SIGTERM via
// memguard.CatchInterrupt.
func PurgeAll() {
	memguard.Purge()
	slog.Info("Purged all secure memory")
}
