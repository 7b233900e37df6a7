package rand

import (
	"crypto/rand"

	"github.com/sirupsen/logrus"
)

// Lower-case plus digits keeps the codes unambiguous when read back over a
// support channel.
const codeAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Code returns a random reference code of the requested length, e.g. for
// tagging a payment that needs manual reconciliation.
func Code(length int) string {
	alphabetLen := len(codeAlphabet)

	var bitLength byte
	for bits := alphabetLen - 1; bits != 0; bits >>= 1 {
		bitLength++
	}
	bitMask := byte(1<<bitLength - 1)

	bufferSize := length + length/3

	result := make([]byte, length)
	for i, j, randomBytes := 0, 0, []byte{}; i < length; j++ {
		if j%bufferSize == 0 {
			randomBytes = secureRandomBytes(bufferSize)
		}
		// Mask bytes to get an index into the alphabet
		if idx := int(randomBytes[j%length] & bitMask); idx < alphabetLen {
			result[i] = codeAlphabet[idx]
			i++
		}
	}

	return string(result)
}

// secureRandomBytes returns the requested number of bytes using crypto/rand
func secureRandomBytes(length int) []byte {
	var randomBytes = make([]byte, length)
	_, err := rand.Read(randomBytes)
	if err != nil {
		logrus.Fatal("Unable to generate random bytes")
	}
	return randomBytes
}
