package pod

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kbukum/podflow/errors"
)

// Key addresses a pod: the pod id plus the partition it serves.
type Key struct {
	ID        int
	Partition int
}

// String renders "<id>:<partition>".
func (k Key) String() string {
	return fmt.Sprintf("%d:%d", k.ID, k.Partition)
}

// ParseKey parses the form produced by String.
func ParseKey(s string) (Key, error) {
	id, partition, ok := strings.Cut(s, ":")
	if !ok {
		return Key{}, errors.InvalidFormat("pod key", "<id>:<partition>")
	}
	i, err := strconv.Atoi(id)
	if err != nil {
		return Key{}, errors.InvalidFormat("pod key id", "integer").WithCause(err)
	}
	p, err := strconv.Atoi(partition)
	if err != nil {
		return Key{}, errors.InvalidFormat("pod key partition", "integer").WithCause(err)
	}
	return Key{ID: i, Partition: p}, nil
}
