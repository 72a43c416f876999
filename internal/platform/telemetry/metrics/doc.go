// Package metrics holds the Prometheus collectors for the crowdfunding
// service. Collectors live on a private registry so tests and multiple
// runtimes in one process never collide on the default registerer.
package metrics
