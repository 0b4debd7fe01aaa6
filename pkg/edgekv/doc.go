// Package edgekv provides a lightweight client for the StratoEdge EdgeKV
// REST API. EdgeKV is a hosted, namespaced key-value store: values are raw
// strings addressed by account, namespace and key, and every endpoint
// except the raw value read replies with a JSON envelope carrying success
// flags, errors, messages and the operation result. The public API centres
// around the Client type, which exposes ListKeys/Get/Set/Delete and hands
// the envelope back verbatim so callers decide their own policy on partial
// failures.
package edgekv
