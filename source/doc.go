// Package source provides built-in credential sources and sessions.
//
// The package includes:
//
//   - HTTP: GET an issue endpoint with the session's bearer token
//   - Static: Fixed credential with failure injection, for tests and demos
//   - Func: Adapter turning a function into a types.CredentialSource
//   - TokenSession: In-process types.Session with an explicit Logout
//
// Custom sources can be implemented by satisfying the types.CredentialSource interface.
package source
