package memory

import (
	"testing"

	"github.com/AccelByte/extend-marketing-automation/pkg/store"
	"github.com/AccelByte/extend-marketing-automation/pkg/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}
