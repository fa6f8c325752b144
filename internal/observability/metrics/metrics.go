// Package metrics exposes Prometheus collectors for the API, the answer
// pipeline and the request worker.
package metrics

const namespace = "ddq"
