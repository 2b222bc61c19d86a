package pagemeta

// Page is the title, description and keywords of one admin page.
type Page struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords,omitempty"`
}

// NavItem is one sidebar or user menu entry.
type NavItem struct {
	Name string `json:"name"`
	Href string `json:"href"`
}

var pages = map[string]Page{
	"/": {
		Title:       "仪表盘",
		Description: "HaloLight 实时运营驾驶舱，多区域部署、智能风控、自定义仪表盘",
		Keywords:    []string{"仪表盘", "数据看板", "运营驾驶舱", "实时监控"},
	},
	"/analytics": {
		Title:       "数据分析",
		Description: "多维度数据分析，支持趋势图、饼图、柱状图等可视化展示",
		Keywords:    []string{"数据分析", "数据可视化", "图表", "趋势分析"},
	},
	"/users": {
		Title:       "用户管理",
		Description: "管理系统用户，支持用户增删改查、角色分配、权限管理",
		Keywords:    []string{"用户管理", "用户列表", "角色分配", "权限管理"},
	},
	"/documents": {
		Title:       "文档管理",
		Description: "企业文档管理中心，支持文档上传、分类、搜索、版本控制",
		Keywords:    []string{"文档管理", "文件管理", "知识库", "文档中心"},
	},
	"/files": {
		Title:       "文件存储",
		Description: "云端文件存储服务，支持多种格式文件上传、预览、下载",
		Keywords:    []string{"文件存储", "云存储", "文件上传", "文件管理"},
	},
	"/messages": {
		Title:       "消息中心",
		Description: "站内消息管理，支持消息发送、接收、已读状态跟踪",
		Keywords:    []string{"消息中心", "站内信", "通知消息", "消息管理"},
	},
	"/calendar": {
		Title:       "日程安排",
		Description: "日程管理与日历视图，支持事件创建、提醒、团队协作",
		Keywords:    []string{"日程安排", "日历", "事件管理", "时间管理"},
	},
	"/notifications": {
		Title:       "通知中心",
		Description: "系统通知管理，支持通知推送、订阅设置、消息归档",
		Keywords:    []string{"通知中心", "系统通知", "消息推送", "通知管理"},
	},
	"/accounts": {
		Title:       "账号权限",
		Description: "账号与权限管理，支持多级权限、角色配置、访问控制",
		Keywords:    []string{"账号权限", "权限管理", "访问控制", "角色配置"},
	},
	"/settings/teams": {
		Title:       "团队设置",
		Description: "团队管理与成员配置，支持团队创建、成员邀请、权限分配",
		Keywords:    []string{"团队设置", "团队管理", "成员管理", "协作配置"},
	},
	"/settings/teams/roles": {
		Title:       "角色管理",
		Description: "系统角色配置，支持角色创建、权限分配、角色继承",
		Keywords:    []string{"角色管理", "角色配置", "权限角色", "RBAC"},
	},
	"/settings": {
		Title:       "系统设置",
		Description: "系统配置中心，支持主题设置、语言设置、通知设置等",
		Keywords:    []string{"系统设置", "配置中心", "主题设置", "个性化"},
	},
	"/docs": {
		Title:       "帮助文档",
		Description: "HaloLight 使用指南与帮助文档，快速上手后台管理系统",
		Keywords:    []string{"帮助文档", "使用指南", "FAQ", "文档中心"},
	},
	"/profile": {
		Title:       "个人资料",
		Description: "个人信息管理，支持头像、昵称、联系方式等信息修改",
		Keywords:    []string{"个人资料", "个人信息", "账户设置", "用户中心"},
	},
	"/security": {
		Title:       "账户安全",
		Description: "账户安全设置，支持密码修改、两步验证、登录日志",
		Keywords:    []string{"账户安全", "密码修改", "两步验证", "安全设置"},
	},
	"/login": {
		Title:       "登录",
		Description: "登录 HaloLight 后台管理系统，安全便捷的企业级管理平台",
		Keywords:    []string{"登录", "用户登录", "系统登录"},
	},
	"/register": {
		Title:       "注册",
		Description: "注册 HaloLight 账号，开启企业级后台管理体验",
		Keywords:    []string{"注册", "用户注册", "创建账号"},
	},
	"/forgot-password": {
		Title:       "忘记密码",
		Description: "找回您的 HaloLight 账号密码",
		Keywords:    []string{"忘记密码", "找回密码", "密码重置"},
	},
	"/reset-password": {
		Title:       "重置密码",
		Description: "重置您的 HaloLight 账号密码",
		Keywords:    []string{"重置密码", "修改密码", "密码更新"},
	},
	"/privacy": {
		Title:       "隐私政策",
		Description: "HaloLight 隐私政策，了解我们如何收集、使用和保护您的数据",
		Keywords:    []string{"隐私政策", "隐私保护", "数据安全"},
	},
	"/terms": {
		Title:       "服务条款",
		Description: "HaloLight 服务条款，了解使用本服务的条款和条件",
		Keywords:    []string{"服务条款", "使用条款", "用户协议"},
	},
}

var nav = []NavItem{
	{Name: "仪表盘", Href: "/"},
	{Name: "数据分析", Href: "/analytics"},
	{Name: "用户管理", Href: "/users"},
	{Name: "文档管理", Href: "/documents"},
	{Name: "文件存储", Href: "/files"},
	{Name: "消息中心", Href: "/messages"},
	{Name: "日程安排", Href: "/calendar"},
	{Name: "通知中心", Href: "/notifications"},
	{Name: "账号权限", Href: "/accounts"},
	{Name: "团队设置", Href: "/settings/teams"},
	{Name: "角色管理", Href: "/settings/teams/roles"},
	{Name: "系统设置", Href: "/settings"},
	{Name: "帮助文档", Href: "/docs"},
}

var userMenu = []NavItem{
	{Name: "个人设置", Href: "/profile"},
	{Name: "账户安全", Href: "/security"},
}

var publicPages = map[string]bool{
	"/login":           true,
	"/register":        true,
	"/forgot-password": true,
	"/reset-password":  true,
	"/privacy":         true,
	"/terms":           true,
}
