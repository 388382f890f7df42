package storagenet

import (
	"crypto/sha512"
	"strconv"
)

// deepHash is the recursive SHA-384 digest used to sign data items. A chunk is
// either a []byte blob or a [][]byte list.
func deepHash(chunk any) []byte {
	switch v := chunk.(type) {
	case [][]byte:
		tag := sha384([]byte("list" + strconv.Itoa(len(v))))
		acc := tag
		for _, item := range v {
			acc = sha384(acc, deepHash(item))
		}
		return acc
	case []byte:
		tag := sha384([]byte("blob" + strconv.Itoa(len(v))))
		return sha384(tag, sha384(v))
	default:
		panic("deepHash: unsupported chunk type")
	}
}

func sha384(parts ...[]byte) []byte {
	h := sha512.New384()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}
