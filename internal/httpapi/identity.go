package httpapi

import (
	"net/http"

	"github.com/MarkoPoloResearchLab/hostel/pkg/housing"
	"github.com/gin-gonic/gin"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
)

const identityContextKey = "hostel_identity"

// identity is the caller resolved from session claims. Admins carry the admin role;
// everyone else must have a numeric user id naming their student record.
type identity struct {
	admin     bool
	studentID housing.StudentID
	student   bool
}

func (caller identity) canActFor(studentID housing.StudentID) bool {
	return caller.admin || (caller.student && caller.studentID == studentID)
}

func resolveIdentity(claims *sessionvalidator.Claims, adminRole string) (identity, bool) {
	if claims == nil {
		return identity{}, false
	}
	for _, role := range claims.GetUserRoles() {
		if role == adminRole {
			return identity{admin: true}, true
		}
	}
	studentID, err := housing.ParseStudentID(claims.GetUserID())
	if err != nil {
		return identity{}, false
	}
	return identity{studentID: studentID, student: true}, true
}

func getClaims(ctx *gin.Context) *sessionvalidator.Claims {
	claimsValue, ok := ctx.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, _ := claimsValue.(*sessionvalidator.Claims)
	return claims
}

// callerIdentity resolves the caller or writes 401/403 and reports false.
func (handler *httpHandler) callerIdentity(ctx *gin.Context) (identity, bool) {
	if cached, ok := ctx.Get(identityContextKey); ok {
		if caller, ok := cached.(identity); ok {
			return caller, true
		}
	}
	claims := getClaims(ctx)
	if claims == nil {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(codeUnauthorized, "missing session"))
		return identity{}, false
	}
	caller, ok := resolveIdentity(claims, handler.cfg.AdminRole)
	if !ok {
		ctx.AbortWithStatusJSON(http.StatusForbidden, errorResponse(codeForbidden, "session is not linked to a student"))
		return identity{}, false
	}
	ctx.Set(identityContextKey, caller)
	return caller, true
}

func (handler *httpHandler) requireAdmin(ctx *gin.Context) {
	caller, ok := handler.callerIdentity(ctx)
	if !ok {
		return
	}
	if !caller.admin {
		ctx.AbortWithStatusJSON(http.StatusForbidden, errorResponse(codeForbidden, "admin role required"))
		return
	}
	ctx.Next()
}
