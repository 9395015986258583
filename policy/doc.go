// Package policy provides optional declarative admission rules applied at
// task submission – for example to block selected task kinds, or to require
// a caller-supplied approval callback before dispatch.
package policy
