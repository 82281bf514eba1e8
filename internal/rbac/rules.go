package rbac

// Default policy. Course-level checks (enrollment, teaching the course)
// happen in the quiz service; these gate the routes.
var RolePermissions = map[string][]string{
	"student": {
		PermQuizView,
		PermAttemptCreate,
		PermAttemptSave,
		PermAttemptFinalize,
		PermAttemptViewOwn,
	},
	"teacher": {
		PermQuizView,
		PermQuizStats,
		"attempt:*",
	},
	"admin": {
		"*", // everything
	},
}
