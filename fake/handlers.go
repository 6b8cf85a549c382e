package fake

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	learnhub "github.com/chimerakang/learnhub-go"
)

const ctxUserID = "fake.user_id"

func (srv *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), srv.faultInjector())

	a := r.Group("/auth")
	a.POST("/login", srv.login)
	a.POST("/register", srv.register)
	a.POST("/social", srv.social)
	a.POST("/verify-otp", srv.verifyOTP)
	a.POST("/reset-password", srv.resetPassword)
	a.POST("/confirm-reset-password", srv.confirmResetPassword)
	a.GET("/profile", srv.authenticated, srv.profile)

	c := r.Group("/courses")
	c.GET("", srv.listCourses)
	c.GET("/categories", srv.categories)
	c.GET("/search", srv.searchCourses)
	c.GET("/favorites", srv.authenticated, srv.listFavorites)
	c.GET("/:id", srv.getCourse)
	c.GET("/:id/sessions", srv.courseSessions)
	c.GET("/:id/contents", srv.courseContents)
	c.GET("/:id/progress", srv.authenticated, srv.progress)
	c.POST("/:id/favorite", srv.authenticated, srv.addFavorite)
	c.DELETE("/:id/favorite", srv.authenticated, srv.removeFavorite)
	c.POST("/sessions/:id/enroll", srv.authenticated, srv.enroll)
	c.POST("/contents/:id/complete", srv.authenticated, srv.completeContent)

	u := r.Group("/users", srv.authenticated)
	u.GET("/profile", srv.profile)
	u.PUT("/profile", srv.updateProfile)
	u.PUT("/change-password", srv.changePassword)
	u.POST("/avatar", srv.uploadAvatar)
	u.GET("/enrollments", srv.listEnrollments)
	u.GET("/certificates", srv.listCertificates)
	u.GET("/certificates/:id/download", srv.downloadCertificate)
	u.DELETE("/account", srv.deleteAccount)
	u.GET("/export-data", srv.exportData)

	return r
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

// faultInjector counts hits per route and applies injected faults.
func (srv *Server) faultInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.Request.Method + " " + c.FullPath()
		srv.s.mu.Lock()
		srv.s.hits[route]++
		f, injected := srv.s.faults[route]
		if injected {
			if f.remaining > 0 {
				f.remaining--
				if f.remaining == 0 {
					delete(srv.s.faults, route)
				}
			}
		}
		srv.s.mu.Unlock()

		if injected {
			fail(c, f.status, f.message)
			return
		}
		c.Next()
	}
}

func (srv *Server) authenticated(c *gin.Context) {
	token, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !found || token == "" {
		fail(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	srv.s.mu.RLock()
	uid, ok := srv.s.tokens[token]
	srv.s.mu.RUnlock()
	if !ok {
		fail(c, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	c.Set(ctxUserID, uid)
	c.Next()
}

func userID(c *gin.Context) int64 { return c.GetInt64(ctxUserID) }

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

// issueLocked mints a token for userID; s.mu must be held.
func (srv *Server) issueLocked(userID int64) gin.H {
	tok := srv.s.issue(userID)
	srv.s.tokens[tok] = userID
	return gin.H{"user": srv.s.accounts[userID].user, "token": tok}
}

// --- auth ---

func (srv *Server) login(c *gin.Context) {
	var req learnhub.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	srv.s.mu.Lock()
	defer srv.s.mu.Unlock()
	id, found := srv.s.emails[req.Email]
	if !found || srv.s.accounts[id].password != req.Password {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	ok(c, srv.issueLocked(id))
}

func (srv *Server) register(c *gin.Context) {
	var req learnhub.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	srv.s.mu.Lock()
	defer srv.s.mu.Unlock()
	if _, taken := srv.s.emails[req.Email]; taken {
		fail(c, http.StatusConflict, "Email already registered")
		return
	}
	id := srv.s.id()
	srv.s.accounts[id] = &account{
		user:     learnhub.User{ID: id, Email: req.Email, FirstName: req.FirstName, LastName: req.LastName, Role: "learner"},
		password: req.Password,
	}
	srv.s.emails[req.Email] = id
	ok(c, srv.issueLocked(id))
}

func (srv *Server) social(c *gin.Context) {
	var req learnhub.SocialAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	srv.s.mu.Lock()
	defer srv.s.mu.Unlock()
	id, found := srv.s.socials[req.Provider+":"+req.AccessToken]
	if !found {
		fail(c, http.StatusUnauthorized, "Invalid social token")
		return
	}
	ok(c, srv.issueLocked(id))
}

func (srv *Server) verifyOTP(c *gin.Context) {
	var req learnhub.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	srv.s.mu.Lock()
	defer srv.s.mu.Unlock()
	id, known := srv.s.emails[req.Email]
	if code, found := srv.s.otps[req.Email]; !found || !known || code != req.Code {
		// A well-formed rejection: HTTP 200 with success=false.
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Invalid or expired code"})
		return
	}
	delete(srv.s.otps, req.Email)
	ok(c, srv.issueLocked(id))
}

func (srv *Server) resetPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		fail(c, http.StatusBadRequest, "Email is required")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "If the address exists, a reset link was sent"})
}

func (srv *Server) confirmResetPassword(c *gin.Context) {
	var req learnhub.ConfirmResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	srv.s.mu.Lock()
	defer srv.s.mu.Unlock()
	id, found := srv.s.resets[req.Token]
	if !found {
		fail(c, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}
	delete(srv.s.resets, req.Token)
	srv.s.accounts[id].password = req.Password
	c.JSON(http.StatusOK, gin.H{"success": true, "data": nil})
}

func (srv *Server) profile(c *gin.Context) {
	srv.s.mu.RLock()
	defer srv.s.mu.RUnlock()
	a, found := srv.s.accounts[userID(c)]
	if !found {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	ok(c, a.user)
}

// --- courses ---

func (srv *Server) listCourses(c *gin.Context) {
	search := strings.ToLower(c.Query("search"))
	category := c.Query("category")
	level := c.Query("level")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	srv.s.mu.RLock()
	var matched []learnhub.Course
	for _, id := range srv.s.courseOrder {
		cs := srv.s.courses[id]
		if search != "" && !strings.Contains(strings.ToLower(cs.Title+" "+cs.Description), search) {
			continue
		}
		if category != "" && cs.Category != category {
			continue
		}
		if level != "" && cs.Level != level {
			continue
		}
		matched = append(matched, *cs)
	}
	srv.s.mu.RUnlock()

	switch c.Query("sortBy") {
	case "title":
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].Title < matched[j].Title })
	case "price":
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].Price < matched[j].Price })
	case "rating":
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].Rating > matched[j].Rating })
	}

	total := len(matched)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)
	ok(c, learnhub.Page[learnhub.Course]{
		Items:      append([]learnhub.Course{}, matched[start:end]...),
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	})
}

func (srv *Server) categories(c *gin.Context) {
	srv.s.mu.RLock()
	seen := map[string]bool{}
	cats := []string{}
	for _, id := range srv.s.courseOrder {
		if cat := srv.s.courses[id].Category; cat != "" && !seen[cat] {
			seen[cat] = true
			cats = append(cats, cat)
		}
	}
	srv.s.mu.RUnlock()
	sort.Strings(cats)
	ok(c, cats)
}

func (srv *Server) searchCourses(c *gin.Context) {
	q := strings.ToLower(strings.TrimSpace(c.Query("q")))
	if q == "" {
		fail(c, http.StatusBadRequest, "Query is required")
		return
	}
	srv.s.mu.RLock()
	defer srv.s.mu.RUnlock()
	found := []learnhub.Course{}
	for _, id := range srv.s.courseOrder {
		cs := srv.s.courses[id]
		if strings.Contains(strings.ToLower(cs.Title+" "+cs.Description), q) {
			found = append(found, *cs)
		}
	}
	ok(c, found)
}

func (srv *Server) getCourse(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	srv.s.mu.RLock()
	defer srv.s.mu.RUnlock()
	cs, found := srv.s.courses[id]
	if !found {
		fail(c, http.StatusNotFound, "Course not found")
		return
	}
	ok(c, cs)
}

func (srv *Server) courseSessions(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	srv.s.mu.RLock()
	defer srv.s.mu.RUnlock()
	if _, found := srv.s.courses[id]; !found {
		fail(c, http.StatusNotFound, "Course not found")
		return
	}
	out := []learnhub.CourseSession{}
	for _, cs := range srv.s.sessions {
		if cs.CourseID == id {
			out = append(out, *cs)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	ok(c, out)
}

func (srv *Server) courseContents(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	srv.s.mu.RLock()
	defer srv.s.mu.RUnlock()
	if _, found := srv.s.courses[id]; !found {
		fail(c, http.StatusNotFound, "Course not found")
		return
	}
	out := append([]learnhub.CourseContent{}, srv.s.contents[id]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	ok(c, out)
}

func (srv *Server) progress(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	srv.s.mu.RLock()
	defer srv.s.mu.RUnlock()
	if _, found := srv.s.courses[id]; !found {
		fail(c, http.StatusNotFound, "Course not found")
		return
	}
	ok(c, srv.progressLocked(userID(c), id))
}

func (srv *Server) progressLocked(uid, courseID int64) learnhub.ProgressStats {
	st := learnhub.ProgressStats{CourseID: courseID, TotalContents: len(srv.s.contents[courseID])}
	for _, cc := range srv.s.contents[courseID] {
		if _, done := srv.s.completed[uid][cc.ID]; done {
			st.CompletedContents++
		}
	}
	if st.TotalContents > 0 {
		st.Percentage = float64(st.CompletedContents) * 100 / float64(st.TotalContents)
	}
	return st
}

func (srv *Server) addFavorite(c *gin.Context)    { srv.setFavorite(c, true) }
func (srv *Server) removeFavorite(c *gin.Context) { srv.setFavorite(c, false) }

func (srv *Server) setFavorite(c *gin.Context, fav bool) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	srv.s.mu.Lock()
	defer srv.s.mu.Unlock()
	if _, found := srv.s.courses[id]; !found {
		fail(c, http.StatusNotFound, "Course not found")
		return
	}
	uid := userID(c)
	if srv.s.favorites[uid] == nil {
		srv.s.favorites[uid] = map[int64]bool{}
	}
	if fav {
		srv.s.favorites[uid][id] = true
	} else {
		delete(srv.s.favorites[uid], id)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": nil})
}

func (srv *Server) listFavorites(c *gin.Context) {
	srv.s.mu.RLock()
	defer srv.s.mu.RUnlock()
	uid := userID(c)
	out := []learnhub.Course{}
	for _, id := range srv.s.courseOrder {
		if srv.s.favorites[uid][id] {
			cs := *srv.s.courses[id]
			cs.IsFavorite = true
			out = append(out, cs)
		}
	}
	ok(c, out)
}

func (srv *Server) enroll(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	srv.s.mu.Lock()
	defer srv.s.mu.Unlock()
	cs, found := srv.s.sessions[id]
	if !found {
		fail(c, http.StatusNotFound, "Session not found")
		return
	}
	uid := userID(c)
	for _, e := range srv.s.enrollments[uid] {
		if e.SessionID == id {
			fail(c, http.StatusConflict, "Already enrolled in this session")
			return
		}
	}
	if cs.Capacity > 0 && cs.Enrolled >= cs.Capacity {
		fail(c, http.StatusBadRequest, "Session is full")
		return
	}
	cs.Enrolled++
	e := learnhub.Enrollment{
		ID:         srv.s.id(),
		UserID:     uid,
		SessionID:  id,
		CourseID:   cs.CourseID,
		Status:     "active",
		EnrolledAt: time.Now().UTC(),
	}
	if course, found := srv.s.courses[cs.CourseID]; found {
		cc := *course
		e.Course = &cc
	}
	srv.s.enrollments[uid] = append(srv.s.enrollments[uid], e)
	ok(c, e)
}

func (srv *Server) completeContent(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	srv.s.mu.Lock()
	defer srv.s.mu.Unlock()

	var content *learnhub.CourseContent
	for courseID := range srv.s.contents {
		for i := range srv.s.contents[courseID] {
			if srv.s.contents[courseID][i].ID == id {
				content = &srv.s.contents[courseID][i]
			}
		}
	}
	if content == nil {
		fail(c, http.StatusNotFound, "Content not found")
		return
	}
	uid := userID(c)
	if srv.s.completed[uid] == nil {
		srv.s.completed[uid] = map[int64]time.Time{}
	}
	at, done := srv.s.completed[uid][id]
	if !done {
		at = time.Now().UTC()
		srv.s.completed[uid][id] = at
	}

	if st := srv.progressLocked(uid, content.CourseID); st.CompletedContents == st.TotalContents {
		srv.certifyLocked(uid, content.CourseID)
	}
	ok(c, learnhub.LearnerProgress{ID: srv.s.id(), UserID: uid, ContentID: id, Completed: true, CompletedAt: at})
}

// certifyLocked issues a course certificate once.
func (srv *Server) certifyLocked(uid, courseID int64) {
	for _, cert := range srv.s.certificates[uid] {
		if cert.CourseID == courseID {
			return
		}
	}
	title := ""
	if cs, found := srv.s.courses[courseID]; found {
		title = cs.Title
	}
	srv.s.certificates[uid] = append(srv.s.certificates[uid], learnhub.Certificate{
		ID: srv.s.id(), CourseID: courseID, Title: title, IssuedAt: time.Now().UTC(),
	})
}

// --- users ---

func (srv *Server) updateProfile(c *gin.Context) {
	var req learnhub.UpdateProfileData
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	srv.s.mu.Lock()
	defer srv.s.mu.Unlock()
	a := srv.s.accounts[userID(c)]
	if a == nil {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	if req.FirstName != "" {
		a.user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		a.user.LastName = req.LastName
	}
	if req.Bio != "" {
		a.bio = req.Bio
	}
	if req.Phone != "" {
		a.phone = req.Phone
	}
	ok(c, a.user)
}

func (srv *Server) changePassword(c *gin.Context) {
	var req learnhub.ChangePasswordData
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	srv.s.mu.Lock()
	defer srv.s.mu.Unlock()
	a := srv.s.accounts[userID(c)]
	if a == nil || a.password != req.CurrentPassword {
		fail(c, http.StatusBadRequest, "Current password is incorrect")
		return
	}
	a.password = req.NewPassword
	c.JSON(http.StatusOK, gin.H{"success": true, "data": nil})
}

func (srv *Server) uploadAvatar(c *gin.Context) {
	fh, err := c.FormFile("avatar")
	if err != nil {
		fail(c, http.StatusBadRequest, "Avatar file is required")
		return
	}
	uid := userID(c)
	url := fmt.Sprintf("/uploads/avatars/%d-%s", uid, fh.Filename)

	srv.s.mu.Lock()
	if a := srv.s.accounts[uid]; a != nil {
		a.user.Avatar = url
	}
	srv.s.mu.Unlock()
	ok(c, learnhub.FileUploadResponse{URL: url, Filename: fh.Filename, Size: fh.Size})
}

func (srv *Server) listEnrollments(c *gin.Context) {
	srv.s.mu.RLock()
	defer srv.s.mu.RUnlock()
	ok(c, append([]learnhub.Enrollment{}, srv.s.enrollments[userID(c)]...))
}

func (srv *Server) listCertificates(c *gin.Context) {
	srv.s.mu.RLock()
	defer srv.s.mu.RUnlock()
	ok(c, append([]learnhub.Certificate{}, srv.s.certificates[userID(c)]...))
}

func (srv *Server) downloadCertificate(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	srv.s.mu.RLock()
	defer srv.s.mu.RUnlock()
	for _, cert := range srv.s.certificates[userID(c)] {
		if cert.ID == id {
			c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="certificate-%d.pdf"`, id))
			c.Data(http.StatusOK, "application/pdf", []byte("%PDF-1.4\n% certificate: "+cert.Title+"\n"))
			return
		}
	}
	fail(c, http.StatusNotFound, "Certificate not found")
}

func (srv *Server) deleteAccount(c *gin.Context) {
	srv.s.mu.Lock()
	defer srv.s.mu.Unlock()
	uid := userID(c)
	if a := srv.s.accounts[uid]; a != nil {
		delete(srv.s.emails, a.user.Email)
	}
	delete(srv.s.accounts, uid)
	delete(srv.s.enrollments, uid)
	delete(srv.s.favorites, uid)
	delete(srv.s.completed, uid)
	delete(srv.s.certificates, uid)
	for tok, id := range srv.s.tokens {
		if id == uid {
			delete(srv.s.tokens, tok)
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": nil})
}

func (srv *Server) exportData(c *gin.Context) {
	srv.s.mu.RLock()
	uid := userID(c)
	a := srv.s.accounts[uid]
	if a == nil {
		srv.s.mu.RUnlock()
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	export := gin.H{
		"user":         a.user,
		"enrollments":  srv.s.enrollments[uid],
		"certificates": srv.s.certificates[uid],
	}
	srv.s.mu.RUnlock()

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Header("Content-Disposition", `attachment; filename="learnhub-export.json"`)
	c.Data(http.StatusOK, "application/json", data)
}
