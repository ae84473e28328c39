/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package sprint computes sprint analytics out of reconstructed Jira
// changelogs: membership classification, burnup series, velocity,
// capacity and commitment KPIs.
package sprint

import "math"

func round2(v float64) float64 {
    return math.Round(v*100) / 100
}
