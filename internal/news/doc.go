// Package news defines the feed's post model and the HTTP client for the
// remote news API (/news/all, /news/add, /news/like/{id}, /news/dislike/{id},
// /news/delete/{id}).
package news
