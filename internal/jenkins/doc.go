// Package jenkins is the build-source boundary: an HTTP polling client for
// one Jenkins job's build history.
//
// Client.Builds fetches the job API
// (/job/{name}/api/json?tree=builds[...]) over HTTPS with basic auth
// (username + API token resolved from the environment), validates every
// entry, and converts the dynamic payload into typed Build records sorted by
// ascending build id. Malformed entries reject the whole fetch as a
// *FetchError — untyped data never reaches the rule engine.
//
// Fetches carry a bounded timeout; a failed fetch is retried on the next
// poll tick by the caller, never within a cycle.
package jenkins
