package files

import (
	"net/http"

	"github.com/sirupsen/logrus"

	gohttp "github.com/km-arc/go-modular/framework/http"
	"github.com/km-arc/go-modular/framework/http/validation"
	"github.com/km-arc/go-modular/framework/routing"
)

var folderRules = validation.Rules{
	"source":      "required|abs_path|max:4096",
	"reference":   "required|abs_path|max:4096|different:source",
	"destination": "required|abs_path|max:4096|different:source|different:reference",
}

type handler struct {
	svc *Service
	log logrus.FieldLogger
}

// mountRoutes adds:
//
//	GET  /files/folders  current folder set
//	POST /files/compare  run compare-and-copy on a folder set
func mountRoutes(router *routing.Router, svc *Service, log logrus.FieldLogger) {
	h := &handler{svc: svc, log: log}
	router.Prefix("/files", func(r *routing.Router) {
		r.Get("/folders", h.folders)
		r.Post("/compare", h.compare)
	})
}

func (h *handler) folders(w http.ResponseWriter, _ *http.Request) {
	gohttp.NewResponse(w).Success(h.svc.Folders())
}

func (h *handler) compare(w http.ResponseWriter, r *http.Request) {
	req := gohttp.NewRequest(r)
	res := gohttp.NewResponse(w)

	var in FolderSet
	if err := req.Bind(&in); err != nil {
		res.Error(http.StatusBadRequest, err.Error())
		return
	}
	if v := validation.Make(in.Fields(), folderRules); v.Fails() {
		res.ValidationError(v.Errors())
		return
	}

	out, err := h.svc.Run(r.Context(), in)
	if err != nil {
		h.log.WithError(err).Error("compare and copy failed")
		res.ServerError(err.Error())
		return
	}
	gohttp.Result(res, out)
}
