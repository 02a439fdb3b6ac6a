// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build windows

package secrets

// checkMlockLimit reports whether locked memory is available.
//
// # Description
//
// Windows has no RLIMIT_MEMLOCK equivalent; VirtualLock draws from the
// process working set, which the OS grows on demand. memguard handles that
// path itself, so the probe always reports sufficient with an unknown limit.
//
// # Outputs
//
//   - bool: Always true
//   - int64: Always -1 (no queryable limit)
func checkMlockLimit() (bool, int64) {
	return true, -1
}
