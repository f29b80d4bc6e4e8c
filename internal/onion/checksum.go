package onion

import (
	"encoding/base32"
	"strings"

	"golang.org/x/crypto/sha3"
)

// v3VersionByte is the trailing version byte of a decoded v3 address.
const v3VersionByte = 0x03

var checksumPrefix = []byte(".onion checksum")

// VerifyV3Checksum reports whether host is a v3 onion host whose embedded
// checksum matches its public key. Subdomains are ignored.
//
// A decoded v3 label is 35 bytes: a 32 byte ed25519 public key, a 2 byte
// checksum and the version byte 0x03.
func VerifyV3Checksum(host string) bool {
	label, ok := ServiceLabel(host)
	if !ok || len(label) != V3Length || !isBase32(label) {
		return false
	}

	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(label))
	if err != nil || len(decoded) != 35 {
		return false
	}

	pubkey, checksum, version := decoded[:32], decoded[32:34], decoded[34]
	if version != v3VersionByte {
		return false
	}
	want := v3Checksum(pubkey, version)
	return checksum[0] == want[0] && checksum[1] == want[1]
}

// v3Checksum returns SHA3-256(".onion checksum" || pubkey || version)[:2].
func v3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)
	sum := sha3.Sum256(data)
	return sum[:2]
}
