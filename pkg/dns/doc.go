/*
Package dns implements the overlay record store and its two faces: the
SSU-facing handler that saves A records carried in DNS-typed packets
(each domain slot holds at most two records, byte-equal duplicates are
suppressed), and a small wire-DNS resolver bridge that answers local A
queries for overlay names out of the store.
*/
package dns
