// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

// Package auth implements the credential and token lifecycle for Keygate.
//
// # Domain Types
//
// User records should be created through NewUser, which validates input,
// normalizes the email, and assigns the identifier and creation timestamp.
// Direct struct initialization bypasses validation and may create invalid
// state. Repository implementations receive pre-validated records.
//
// # Components
//
//   - BcryptHasher - one-way password hashing and constant-time verification
//   - TokenCodec - signs and verifies compact expiring identity tokens (JWT)
//   - Service - signup, signin, and bearer-token authentication
//
// The Service is the only component that makes failure-mode decisions;
// credential and token errors are deliberately flattened at its boundary so
// callers cannot distinguish why authentication failed.
package auth
