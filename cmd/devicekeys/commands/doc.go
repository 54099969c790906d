// Package commands defines the devicekeys CLI.
//
// Commands
//
//   - generate     Create (or replace) the device key bundle for --user
//   - load         Print the stored bundle and whether it is complete
//   - fingerprint  Print the identity key fingerprint
//   - verify       Check a signed prekey against an identity key
//   - encrypt      Encrypt a payload for a peer's signed prekey
//   - decrypt      Decrypt an incoming payload
//   - clear        Delete every key record for --user
//   - publish      Upload the public bundle to the directory
//   - fetch        Download and verify a peer's bundle
//
// The root command loads the TOML config, applies flag overrides and wires
// an app.App before any subcommand runs; it is closed again afterwards.
package commands
