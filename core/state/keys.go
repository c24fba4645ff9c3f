package state

// Key layout. Variable components are joined with a NUL separator so denoms
// containing '/' (factory and LP denoms) cannot collide with neighbouring
// entries, and prefix iteration stays ordered by (account, denom).
var (
	kindPrefix      = []byte("credit/kind/")
	depositPrefix   = []byte("credit/deposit/")
	debtPrefix      = []byte("credit/debt/")
	debtTotalPrefix = []byte("credit/debt-total/")
	lendPrefix      = []byte("credit/lend/")
	lendTotalPrefix = []byte("credit/lend-total/")
	vaultPrefix     = []byte("credit/vault/")
	stakedLPPrefix  = []byte("credit/staked-lp/")
)

const keySep = byte(0x00)

func joinKey(prefix []byte, parts ...string) []byte {
	size := len(prefix)
	for _, p := range parts {
		size += len(p) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for i, p := range parts {
		if i > 0 {
			buf = append(buf, keySep)
		}
		buf = append(buf, p...)
	}
	return buf
}

// splitKey strips the prefix and splits the remainder on the separator.
func splitKey(prefix, key []byte) []string {
	rest := key[len(prefix):]
	parts := []string{}
	start := 0
	for i := 0; i < len(rest); i++ {
		if rest[i] == keySep {
			parts = append(parts, string(rest[start:i]))
			start = i + 1
		}
	}
	parts = append(parts, string(rest[start:]))
	return parts
}
