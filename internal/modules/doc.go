// Package modules holds the application features. Each subpackage exposes a
// module.Module that the server registers, boots and shuts down in order.
package modules
