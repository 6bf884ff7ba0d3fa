package patient

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/jwalitptl/medvault-api/internal/model"
	apperrors "github.com/jwalitptl/medvault-api/pkg/errors"
)

// IDPrefix starts every patient ID.
const IDPrefix = "PAT"

var idPattern = regexp.MustCompile(`^` + IDPrefix + `(\d+)$`)

// NextID returns the ID after the highest one in existing. Numbers are
// zero-padded to three digits and grow past that width when needed. An ID
// that does not follow the PAT<digits> format halts allocation.
func NextID(existing []*model.Patient) (string, error) {
	max := 0
	for _, p := range existing {
		m := idPattern.FindStringSubmatch(p.ID)
		if m == nil {
			return "", apperrors.CorruptIdentity(p.ID)
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return "", apperrors.CorruptIdentity(p.ID)
		}
		if n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s%03d", IDPrefix, max+1), nil
}
