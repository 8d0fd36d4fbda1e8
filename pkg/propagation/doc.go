// Package propagation implements bounded-depth flooding of wrapped
// packets across known peers, with hash-keyed loop suppression.
package propagation
