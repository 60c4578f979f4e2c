// Package device holds the value types passed into integration dispatch:
// a Device with its desired State, and the HSV Color used by lighting kinds.
//
// These are plain data. Callers build them, the registry routes them by
// Device.IntegrationID, and integrations read them. Nothing here is shared
// mutable state; use DeepCopy before retaining a value.
package device
