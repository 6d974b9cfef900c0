// Package http provides request and response helpers for module handlers.
//
//	func (h *handler) compare(w http.ResponseWriter, r *http.Request) {
//	    req := gohttp.NewRequest(r)
//	    res := gohttp.NewResponse(w)
//
//	    var in files.FolderSet
//	    if err := req.Bind(&in); err != nil {
//	        res.Error(http.StatusBadRequest, err.Error())
//	        return
//	    }
//	    v := validation.Make(in.Fields(), validation.Rules{"source": "required"})
//	    if v.Fails() {
//	        res.ValidationError(v.Errors())
//	        return
//	    }
//	    out, err := h.svc.Run(r.Context(), in)
//	    if err != nil {
//	        res.ServerError()
//	        return
//	    }
//	    gohttp.Result(res, out)
//	}
//
// Every JSON body is an envelope: {"data": ...} on success,
// {"message": ...} on error, {"errors": {...}} on validation failure, or a
// result.Result for service outcomes.
package http
