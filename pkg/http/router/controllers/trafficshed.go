package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/julienschmidt/httprouter"
	helper "github.com/lintang-b-s/trafficshed/pkg/http/router/routerhelper"
	"go.uber.org/zap"
)

type trafficshedAPI struct {
	trafficService TrafficService
	validate       *validator.Validate
	trans          ut.Translator
	log            *zap.Logger
}

func New(trafficService TrafficService, log *zap.Logger) *trafficshedAPI {
	validate := validator.New()
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(validate, trans)

	return &trafficshedAPI{
		trafficService: trafficService,
		validate:       validate,
		trans:          trans,
		log:            log,
	}
}

func (api *trafficshedAPI) Routes(group *helper.RouteGroup) {
	group.GET("/trafficshed", api.trafficshed)
}

// trafficshed. GET /api/trafficshed?lat=&lon= runs the pipeline towards the node nearest to (lat, lon).
func (api *trafficshedAPI) trafficshed(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var (
		request trafficshedRequest
		err     error
	)

	query := r.URL.Query()

	request.Lat, err = strconv.ParseFloat(query.Get("lat"), 64)
	if err != nil {
		api.BadRequestResponse(w, r, errors.New("lat is required and must be a valid float"))
		return
	}
	request.Lon, err = strconv.ParseFloat(query.Get("lon"), 64)
	if err != nil {
		api.BadRequestResponse(w, r, errors.New("lon is required and must be a valid float"))
		return
	}

	if err := api.validate.Struct(request); err != nil {
		vv := translateError(err, api.trans)
		vvString := []string{}
		for _, v := range vv {
			vvString = append(vvString, v.Error())
		}
		api.BadRequestResponse(w, r, fmt.Errorf("validation error: %v", vvString))
		return
	}

	res, fc, err := api.trafficService.Trafficshed(r.Context(), request.Lat, request.Lon)
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}

	headers := make(http.Header)
	headers.Set("X-Run-Id", res.RunID)

	if err := api.writeJSON(w, http.StatusOK, envelope{"data": NewTrafficshedResponse(res, fc)}, headers); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}
}
