// Command iamctl is the reference client for iamd: it signs every request
// with a locally held Ed25519 key and drives the user/group/policy/
// membership/session REST surface described in spec §6.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	switch os.Args[1] {
	case "keygen":
		cmdKeygen(os.Args[2:])
	case "user":
		cmdUser(os.Args[2:])
	case "group":
		cmdGroup(os.Args[2:])
	case "policy":
		cmdPolicy(os.Args[2:])
	case "membership":
		cmdMembership(os.Args[2:])
	case "session":
		cmdSession(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <keygen|user|group|policy|membership|session> <subcommand> [flags]\n", os.Args[0])
	os.Exit(1)
}
