// Package mobymock contains the mocks of the moby package.
package mobymock

//go:generate mockery --case underscore --output . --outpkg mobymock --srcpkg github.com/slok/mobydemux/internal/moby --name DockerClient --structname MockDockerClient --filename mocks.go
