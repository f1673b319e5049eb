// Package web3 houses blockchain connectivity utilities, including the client
// abstraction over Ethereum JSON-RPC, multi-chain configuration loading, and
// provider registries that select the chain the wallet operates on. It keeps
// the rest of the codebase independent of any concrete RPC implementation.
package web3
