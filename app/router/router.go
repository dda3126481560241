package router

import (
	"github.com/aihub/paperqa-go/app/controllers"
	"github.com/aihub/paperqa-go/app/middleware"
	"github.com/beego/beego/v2/server/web"
)

// Init registers all routes. Must be called after config is loaded.
func Init() {
	web.InsertFilter("/*", web.BeforeRouter, middleware.CORSMiddleware)

	web.Router("/", &controllers.RootController{}, "get:Index")
	web.Router("/health", &controllers.HealthController{}, "get:Health")
	web.Router("/metrics", &controllers.MetricsController{}, "get:Metrics")

	// 论文路由
	// 注意：具体路由必须在参数路由之前，否则/upload-url会被:id匹配
	paperController := &controllers.PaperController{}
	web.Router("/api/papers", paperController, "get:List")
	web.Router("/api/papers/upload-url", paperController, "post:CreateUploadURL")
	web.Router("/api/papers/upload", paperController, "put:Upload")
	web.Router("/api/papers/ingest", paperController, "post:Ingest")
	web.Router("/api/papers/:id/pdf", paperController, "get:GetFile")

	// 问答路由
	web.Router("/api/chat", &controllers.ChatController{}, "post:Ask")
}
