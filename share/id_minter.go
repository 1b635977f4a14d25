package gwshare

import (
	"github.com/sammck-go/gwtunnel/pkg/gwframe"
)

// IDMinter hands out logical connection ids "0001" through "9999" in sequence,
// wrapping after the last and skipping ids that are still live.
type IDMinter struct {
	last int
}

// Next returns the next id for which inUse is false. If every id is in use it
// returns ErrIDSpaceExhausted and does not advance.
func (m *IDMinter) Next(inUse func(id string) bool) (string, error) {
	n := m.last
	for i := 0; i < gwframe.MaxMintedID; i++ {
		n++
		if n > gwframe.MaxMintedID {
			n = 1
		}
		id, err := gwframe.FormatID(n)
		if err != nil {
			return "", err
		}
		if inUse == nil || !inUse(id) {
			m.last = n
			return id, nil
		}
	}
	return "", ErrIDSpaceExhausted
}
