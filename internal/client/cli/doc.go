// Package cli provides the interactive gophauth command-line client.
//
// It wires configuration and the gRPC client into a small REPL: register,
// login, whoami, delete, logout. Passwords are read without echo and wiped
// after the call that needs them. A background watcher pings the server and
// shows online or offline in the prompt.
package cli
