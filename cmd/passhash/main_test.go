package main

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashFrom(t *testing.T) {
	h, err := hashFrom(bufio.NewReader(strings.NewReader("open sesame\n")), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(h), []byte("open sesame")))

	_, err = hashFrom(bufio.NewReader(strings.NewReader("\n")), bcrypt.MinCost)
	require.Error(t, err)
	_, err = hashFrom(bufio.NewReader(strings.NewReader("")), bcrypt.MinCost)
	require.Error(t, err)
}
