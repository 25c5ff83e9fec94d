package route

import "strings"

// Surface classifies a request path for the auth redirect rules.
type Surface int

const (
	SurfaceOther Surface = iota
	SurfaceSite
	SurfaceAuth
	SurfaceDashboard
	SurfaceCallback
	SurfaceAPI
)

// Well-known paths of the route surface.
const (
	PathHome      = "/"
	PathLogin     = "/login"
	PathSignup    = "/signup"
	PathDashboard = "/dashboard"
	PathCallback  = "/api/auth/callback"
)

func (s Surface) String() string {
	switch s {
	case SurfaceSite:
		return "site"
	case SurfaceAuth:
		return "auth"
	case SurfaceDashboard:
		return "dashboard"
	case SurfaceCallback:
		return "callback"
	case SurfaceAPI:
		return "api"
	default:
		return "other"
	}
}

// Classify returns the surface path belongs to. Any path starting with
// /dashboard is a dashboard path, matching a plain prefix check.
func Classify(path string) Surface {
	switch {
	case path == PathHome || path == "":
		return SurfaceSite
	case path == PathLogin || path == PathSignup:
		return SurfaceAuth
	case strings.HasPrefix(path, PathDashboard):
		return SurfaceDashboard
	case path == PathCallback:
		return SurfaceCallback
	case strings.HasPrefix(path, "/api/"):
		return SurfaceAPI
	default:
		return SurfaceOther
	}
}
