package catalog

// Input structs for the default site-assistant tools. Schemas are generated
// from the field tags.

type listPostsInput struct {
	Status  string `json:"status,omitempty" description:"Filter by post status" enum:"publish,draft,pending,private"`
	Search  string `json:"search,omitempty" description:"Free-text search query"`
	PerPage int    `json:"per_page,omitempty" description:"Number of posts to return (max 50)"`
	Page    int    `json:"page,omitempty" description:"Result page, starting at 1"`
}

type getPostInput struct {
	ID int `json:"id" description:"Post ID"`
}

type createPostInput struct {
	Title   string `json:"title" description:"Post title"`
	Content string `json:"content" description:"Post body, HTML or plain text"`
	Status  string `json:"status,omitempty" description:"Initial status" enum:"draft,publish" default:"draft"`
}

type updatePostInput struct {
	ID      int    `json:"id" description:"Post ID to update"`
	Title   string `json:"title,omitempty" description:"New title"`
	Content string `json:"content,omitempty" description:"New body"`
	Status  string `json:"status,omitempty" description:"New status" enum:"draft,publish,pending,private"`
}

type deletePostInput struct {
	ID    int  `json:"id" description:"Post ID to delete"`
	Force bool `json:"force,omitempty" description:"Skip trash and delete permanently"`
}

type searchContentInput struct {
	Query string `json:"query" description:"Search query"`
	Type  string `json:"type,omitempty" description:"Content type to search" enum:"post,page,any" default:"any"`
}

type navigateInput struct {
	Target string `json:"target" description:"Admin screen or URL to open"`
}

type updateSettingInput struct {
	Key   string `json:"key" description:"Setting key"`
	Value string `json:"value" description:"New value"`
}

// Default returns the tool set exposed to the embedded site assistant.
// Mutating tools require user confirmation before the caller executes them;
// read-only tools do not.
func Default() *Catalog {
	return New(
		Define[listPostsInput]("list_posts",
			"List the site's posts, optionally filtered by status or a search query.").
			WithCategory("content"),
		Define[getPostInput]("get_post",
			"Fetch a single post by ID, including its content and metadata.").
			WithCategory("content"),
		Define[createPostInput]("create_post",
			"Create a new post. Defaults to a draft unless publish is requested.").
			WithCategory("content").WithConfirmation(),
		Define[updatePostInput]("update_post",
			"Update an existing post's title, content, or status.").
			WithCategory("content").WithConfirmation(),
		Define[deletePostInput]("delete_post",
			"Delete a post. Moves it to trash unless force is set.").
			WithCategory("content").WithConfirmation(),
		Define[searchContentInput]("search_content",
			"Search across the site's posts and pages.").
			WithCategory("content"),
		Definition{
			Name:        "get_site_info",
			Description: "Return the site's title, tagline, URL, and active theme.",
			Category:    "site",
		},
		Define[navigateInput]("navigate",
			"Open an admin screen in the user's browser.").
			WithCategory("navigation"),
		Define[updateSettingInput]("update_setting",
			"Change a site setting.").
			WithCategory("site").WithConfirmation(),
	)
}
