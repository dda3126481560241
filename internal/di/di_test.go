package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDependencyInjectionContainer(t *testing.T) {
	container := InitContainer()
	assert.NotNil(t, container)
	assert.NotNil(t, Container)
}

func TestContainerBasicOperations(t *testing.T) {
	container := InitContainer()

	type TestService struct {
		Name string
	}

	err := container.Provide(func() *TestService {
		return &TestService{Name: "test"}
	})
	require.NoError(t, err)

	err = container.Invoke(func(svc *TestService) {
		assert.Equal(t, "test", svc.Name)
	})
	assert.NoError(t, err)
}
