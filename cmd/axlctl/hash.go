// Password hashing for the daemon configuration
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"axl-go/pkg/server"
)

// cmdHashPassword prints an argon2id hash suitable for the
// server.password_hash configuration key. It runs locally and does not
// contact the daemon.
func cmdHashPassword(args []string) error {
	fs := flag.NewFlagSet("hash-password", flag.ExitOnError)
	password := fs.String("password", "", "password to hash (prompted when empty)")
	fs.Parse(args)

	pw := *password
	if pw == "" {
		fmt.Fprint(os.Stderr, "password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return err
		}
		pw = strings.TrimSpace(line)
	}
	if pw == "" {
		return fmt.Errorf("empty password")
	}

	hash, err := server.HashPassword(pw)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
